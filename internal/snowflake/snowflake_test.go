package snowflake

import (
	"testing"
	"time"
)

func TestSetupSnowflake(t *testing.T) {
	err := Setup(7)
	if err != nil {
		t.Error(err)
	}

	if err := Setup(8); err == nil {
		t.Error("Expected error on second Setup, got nil")
	}
}

func TestGenerateSnowflake(t *testing.T) {
	_ = Setup(7)

	first, err := Generate()
	if err != nil {
		t.Error(err)
	}
	second, err := Generate()
	if err != nil {
		t.Error(err)
	}

	if second <= first {
		t.Errorf("ids not increasing: %d then %d", first, second)
	}
}

func TestExtractSnowflake(t *testing.T) {
	_ = Setup(7)

	before := time.Now().UnixMilli()
	id, err := Generate()
	if err != nil {
		t.Fatal(err)
	}

	parts := Extract(id)
	if parts.Timestamp < before || parts.Timestamp > time.Now().UnixMilli() {
		t.Errorf("extracted timestamp %d outside generation window", parts.Timestamp)
	}
	if parts.Timestamp != ExtractTimestamp(id) {
		t.Error("Extract and ExtractTimestamp disagree")
	}
}
