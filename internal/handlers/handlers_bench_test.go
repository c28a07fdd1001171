package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumenstream/extractor/internal/types"
)

// BenchmarkJSONDecode measures JSON request parsing performance.
func BenchmarkJSONDecode(b *testing.B) {
	reqBody := `{"embedUrl":"https://embed.example.com/e/abc","timeout":30000,"priority":"normal"}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var req types.ExtractRequest
		if err := json.Unmarshal([]byte(reqBody), &req); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkJSONDecodeWithPool measures JSON decoding using pooled buffers.
func BenchmarkJSONDecodeWithPool(b *testing.B) {
	reqBody := `{"embedUrl":"https://embed.example.com/e/abc","timeout":30000,"priority":"normal"}`
	reader := strings.NewReader(reqBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reader.Reset(reqBody)

		buf := getBuffer()
		_, _ = io.Copy(buf, reader)
		var req types.ExtractRequest
		if err := json.Unmarshal(buf.Bytes(), &req); err != nil {
			b.Fatal(err)
		}
		putBuffer(buf)
	}
}

// BenchmarkJSONEncode measures JSON response encoding performance.
func BenchmarkJSONEncode(b *testing.B) {
	resp := types.ExtractResponse{
		Success: true,
		URL:     "https://cdn.example.com/stream.m3u8",
		M3U8URL: "https://cdn.example.com/stream.m3u8",
		Headers: map[string]string{
			"Referer":    "https://player.example.com/",
			"Origin":     "https://player.example.com",
			"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		},
		Cookies: []types.Cookie{{Name: "sid", Value: "abc123", Domain: ".example.com"}},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := json.Marshal(resp)
		if err != nil {
			b.Fatal(err)
		}
		_ = data
	}
}

// BenchmarkBufferPool measures sync.Pool allocation performance.
func BenchmarkBufferPool(b *testing.B) {
	b.Run("WithPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := getBuffer()
			buf.WriteString("test data for buffer pool benchmark")
			putBuffer(buf)
		}
	})

	b.Run("WithoutPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := bytes.NewBuffer(make([]byte, 0, 4096))
			buf.WriteString("test data for buffer pool benchmark")
		}
	})
}

// BenchmarkRequestParsing benchmarks the full request body parsing path.
func BenchmarkRequestParsing(b *testing.B) {
	reqData := types.ExtractRequest{
		EmbedURL: "https://embed.example.com/e/abc?query=value",
		Timeout:  60000,
		Priority: "high",
	}
	reqBody, _ := json.Marshal(reqData)

	b.Run("DirectUnmarshal", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var req types.ExtractRequest
			_ = json.Unmarshal(reqBody, &req)
		}
	})

	b.Run("WithPooledBuffer", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			reader := bytes.NewReader(reqBody)
			buf := getBuffer()
			_, _ = io.Copy(buf, reader)
			var req types.ExtractRequest
			_ = json.Unmarshal(buf.Bytes(), &req)
			putBuffer(buf)
		}
	})
}

// BenchmarkHTTPHandler benchmarks request parsing and response writing
// overhead without actual browser operations.
func BenchmarkHTTPHandler(b *testing.B) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := getBuffer()
		defer putBuffer(buf)

		_, _ = io.Copy(buf, r.Body)
		var req types.ExtractRequest
		_ = json.Unmarshal(buf.Bytes(), &req)

		resp := types.ExtractResponse{Success: false, Error: "m3u8 extraction failed"}
		_ = json.NewEncoder(w).Encode(resp)
	})

	reqBody := `{"embedUrl":"https://embed.example.com/e/abc"}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(reqBody))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}
}

// BenchmarkCookieParsing benchmarks cookie array parsing in a response body.
func BenchmarkCookieParsing(b *testing.B) {
	cookies := make([]types.Cookie, 20)
	for i := 0; i < 20; i++ {
		cookies[i] = types.Cookie{
			Name:   "cookie" + string(rune('a'+i)),
			Value:  strings.Repeat("x", 100),
			Domain: ".example.com",
			Path:   "/",
		}
	}
	resp := types.ExtractResponse{
		Success: true,
		URL:     "https://cdn.example.com/stream.m3u8",
		Cookies: cookies,
	}
	respBody, _ := json.Marshal(resp)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out types.ExtractResponse
		_ = json.Unmarshal(respBody, &out)
	}
}

// BenchmarkResponseBuffer benchmarks the response buffer pool.
func BenchmarkResponseBuffer(b *testing.B) {
	b.Run("WithPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := getResponseBuffer()
			buf.WriteString(strings.Repeat("x", 8000))
			putResponseBuffer(buf)
		}
	})

	b.Run("WithoutPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := bytes.NewBuffer(make([]byte, 0, 8192))
			buf.WriteString(strings.Repeat("x", 8000))
		}
	})
}
