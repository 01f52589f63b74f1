package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrinterSuspendRoutesToSink(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Println("before")
	var sunk []string
	p.Suspend(func(line string) { sunk = append(sunk, line) })
	assert.True(t, p.IsSuspended())
	p.Printf("one\ntwo\n")
	p.Resume()
	p.Println("after")

	assert.Equal(t, "before\nafter\n", buf.String())
	assert.Equal(t, []string{"one", "two"}, sunk)
}

func TestPrinterPanels(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Success("Started", "development environment is up")
	out := buf.String()
	assert.Contains(t, out, "Started")
	assert.Contains(t, out, "development environment is up")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "12m 5s", FormatDuration(12*time.Minute+5*time.Second))
	assert.Equal(t, "3h 20m", FormatDuration(3*time.Hour+20*time.Minute+10*time.Second))
	assert.Equal(t, "0s", FormatDuration(-time.Second))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "0 B", FormatBytes(-1))
}
