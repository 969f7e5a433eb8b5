package fileHandlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxAttachmentSize = 16 << 20 // 16 MiB

// HandleAttachment stores one uploaded file under a fresh uuid name and
// returns its serve path. Attachment URLs end up encrypted inside message
// rows, the file name must never leak anything about the content.
func HandleAttachment(r *http.Request) (string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if header.Size > maxAttachmentSize {
		return "", fmt.Errorf("attachment exceeds %d bytes", int64(maxAttachmentSize))
	}

	name, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	fileName := name.String() + ext
	folderPath := filepath.Join(".", "public", "attachments")

	mutex.Lock()
	defer mutex.Unlock()

	if err := os.MkdirAll(folderPath, os.ModePerm); err != nil {
		return "", err
	}

	out, err := os.Create(filepath.Join(folderPath, fileName))
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(file, maxAttachmentSize)); err != nil {
		return "", err
	}

	return "/cdn/attachments/" + fileName, nil
}
