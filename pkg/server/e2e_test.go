package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittobrowse/pkg/config"
	"github.com/marmos91/dittobrowse/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const e2eConfig = `
logging:
  level: ERROR
filesystem:
  type: local
  root: %q
listing:
  order: name
cache:
  store: badger
  badger:
    dir: %q
adapters:
  http:
    enabled: true
    port: %d
`

// freePort asks the kernel for an unused port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

// startServer boots the full stack from a config file and returns the base
// URL of the HTTP adapter.
func startServer(t *testing.T, root string) string {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	port := freePort(t)
	content := fmt.Sprintf(e2eConfig, root, filepath.Join(t.TempDir(), "thumbs"), port)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	reg, err := config.InitializeRegistry(context.Background(), cfg, nil)
	require.NoError(t, err)
	reg.Start()

	adapters, err := config.CreateAdapters(cfg, nil)
	require.NoError(t, err)

	srv := server.New(reg, 5*time.Second)
	for _, a := range adapters {
		require.NoError(t, srv.AddAdapter(a))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.True(t, err == nil || errors.Is(err, context.Canceled), "serve: %v", err)
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		assert.NoError(t, reg.Close(closeCtx))
	})

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/thumb")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)
	return base
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestEndToEnd(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "album", "cat.png"), 640, 480)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0644))

	base := startServer(t, root)

	t.Run("ListRoot", func(t *testing.T) {
		resp, body := get(t, base+"/api/list")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var l struct {
			Files []struct {
				Name     string `json:"name"`
				URL      string `json:"url"`
				ThumbURL string `json:"thumb_url"`
			} `json:"files"`
			Directories []struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"directories"`
		}
		require.NoError(t, json.Unmarshal(body, &l))

		require.Len(t, l.Files, 1)
		assert.Equal(t, "notes.txt", l.Files[0].Name)
		assert.Equal(t, "/thumb", l.Files[0].ThumbURL)
		require.Len(t, l.Directories, 1)
		assert.Equal(t, "/api/list/album", l.Directories[0].URL)
	})

	t.Run("Download", func(t *testing.T) {
		resp, body := get(t, base+"/file/notes.txt")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "hello", string(body))
	})

	t.Run("Thumbnail", func(t *testing.T) {
		resp, body := get(t, base+"/thumb/album/cat.png")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

		img, err := jpeg.Decode(bytes.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, 400, img.Bounds().Dx())
		assert.Equal(t, 300, img.Bounds().Dy())

		// Served again from the cache.
		again, body2 := get(t, base+"/thumb/album/cat.png")
		require.Equal(t, http.StatusOK, again.StatusCode)
		assert.Equal(t, body, body2)
	})

	t.Run("EscapeIsNotFound", func(t *testing.T) {
		resp, _ := get(t, base+"/file/..%2F..%2Fetc%2Fpasswd")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
