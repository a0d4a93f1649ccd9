package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLog(t *testing.T) {
	tt := []struct {
		desc     string
		logFile  bool
		headless bool
		toFile   bool
		toStderr bool
	}{
		{"tui discards", false, false, false, false},
		{"headless keeps output", false, true, false, true},
		{"log file", true, false, true, false},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			flags := rootFlags
			output := log.Writer()
			defer func() {
				rootFlags = flags
				log.SetOutput(output)
			}()
			var before bytes.Buffer
			log.SetOutput(&before)

			filename := filepath.Join(t.TempDir(), "rtlscan.log")
			rootFlags.logFile = ""
			if tc.logFile {
				rootFlags.logFile = filename
			}
			rootFlags.headless = tc.headless

			closer, err := setupLog()
			require.NoError(t, err)
			log.Print("hello")
			assert.NoError(t, closer.Close())

			assert.Equal(t, tc.toStderr, before.Len() > 0)
			if tc.toFile {
				content, err := os.ReadFile(filename)
				require.NoError(t, err)
				assert.Contains(t, string(content), "hello")
			} else {
				assert.Equal(t, io.Discard == log.Writer(), !tc.toStderr)
			}
		})
	}
}
