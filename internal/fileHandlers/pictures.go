package fileHandlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

var mutex sync.Mutex

// HandleAvatarPicture squares, scales and recompresses the uploaded picture
// through ffmpeg, then stores it content-addressed so identical uploads share
// one file. Returns the stored file name, or ErrMissingFile when the form has
// no picture.
func HandleAvatarPicture(r *http.Request) (string, error) {
	picFormFile, _, err := r.FormFile("picture")
	if err != nil {
		return "", err
	}
	defer picFormFile.Close()

	inputBytes, err := io.ReadAll(picFormFile)
	if err != nil {
		return "", err
	}

	cmd := exec.Command(
		"ffmpeg",
		"-i", "pipe:0",
		"-vf", "crop=min(iw\\,ih):min(iw\\,ih):(iw-min(iw\\,ih))/2:(ih-min(iw\\,ih))/2,scale=256:256",
		"-vframes", "1",
		"-c:v", "libwebp",
		"-quality", "50",
		"-preset", "default",
		"-f", "webp",
		"pipe:1",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", err
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		return "", err
	}

	if _, err := stdin.Write(inputBytes); err != nil {
		return "", err
	}
	if err := stdin.Close(); err != nil {
		return "", err
	}

	if err := cmd.Wait(); err != nil {
		return "", err
	}

	resultBytes := stdout.Bytes()

	hash := sha256.Sum256(resultBytes)
	fileName := hex.EncodeToString(hash[:]) + ".webp"
	folderPath := filepath.Join(".", "public", "avatars")
	fullPath := filepath.Join(folderPath, fileName)

	mutex.Lock()
	defer mutex.Unlock()

	if err := os.MkdirAll(folderPath, os.ModePerm); err != nil {
		return "", err
	}

	_, err = os.Stat(fullPath)
	if os.IsNotExist(err) {
		if err := os.WriteFile(fullPath, resultBytes, 0644); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	return fileName, nil
}
