package sdruntime

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

type fakeWebUI struct {
	mu         sync.Mutex
	checkpoint string
	lastReq    txt2imgRequest
	image      []byte
	failTxt    bool
	noImages   bool
}

func (f *fakeWebUI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+webuiModelsPath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]webuiCheckpoint{
			{Title: "v1-5-pruned-emaonly.safetensors [6ce0161689]", ModelName: "v1-5-pruned-emaonly"},
			{Title: "sd_turbo.safetensors [b3b6ae5c4a]", ModelName: "sd_turbo"},
		})
	})
	mux.HandleFunc("POST "+webuiOptionsPath, func(w http.ResponseWriter, r *http.Request) {
		var opts map[string]string
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.checkpoint = opts["sd_model_checkpoint"]
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST "+webuiTxt2ImgPath, func(w http.ResponseWriter, r *http.Request) {
		if f.failTxt {
			http.Error(w, `{"detail":"CUDA out of memory"}`, http.StatusInternalServerError)
			return
		}
		var req txt2imgRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.lastReq = req
		f.mu.Unlock()

		resp := txt2imgResponse{}
		if !f.noImages {
			resp.Images = []string{base64.StdEncoding.EncodeToString(f.image)}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func TestWebUIBackend_LoadSelectsCheckpoint(t *testing.T) {
	fake := &fakeWebUI{image: testPNG(t, 32, 32)}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	backend := NewWebUIBackend(srv.URL+"/", "SD_TURBO", srv.Client(), zaptest.NewLogger(t))
	rt := New(backend, DefaultConfig(), zaptest.NewLogger(t))

	data, err := rt.Generate(context.Background(), "a castle made of cake")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(data, fake.image) {
		t.Error("Generate() bytes differ from the served image")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.checkpoint != "sd_turbo.safetensors [b3b6ae5c4a]" {
		t.Errorf("selected checkpoint = %q", fake.checkpoint)
	}
	req := fake.lastReq
	if req.Prompt != "a castle made of cake" || req.Width != 256 || req.Height != 256 || req.Steps != 1 || req.BatchSize != 1 {
		t.Errorf("txt2img request = %+v", req)
	}
}

func TestWebUIBackend_UnknownCheckpoint(t *testing.T) {
	fake := &fakeWebUI{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	backend := NewWebUIBackend(srv.URL, "sdxl", srv.Client(), zaptest.NewLogger(t))
	if _, err := backend.Load(context.Background()); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Load() error = %v, want ErrModelUnavailable", err)
	}
}

func TestWebUIBackend_EmptyModelKeepsActiveCheckpoint(t *testing.T) {
	fake := &fakeWebUI{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	backend := NewWebUIBackend(srv.URL, "", srv.Client(), zaptest.NewLogger(t))
	if _, err := backend.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if fake.checkpoint != "" {
		t.Errorf("Load() changed the checkpoint to %q", fake.checkpoint)
	}
}

func TestWebUIBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	backend := NewWebUIBackend(url, "", nil, zaptest.NewLogger(t))
	if _, err := backend.Load(context.Background()); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("Load() error = %v, want ErrModelUnavailable", err)
	}
}

func TestWebUIBackend_GenerationFailures(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeWebUI
		wantErr error
	}{
		{"server error", &fakeWebUI{failTxt: true}, ErrGenerationFailed},
		{"no images", &fakeWebUI{noImages: true}, ErrInvalidOutput},
		{"not a png", &fakeWebUI{image: bytes.Repeat([]byte("x"), 64)}, ErrInvalidOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.fake.handler())
			defer srv.Close()

			rt := New(NewWebUIBackend(srv.URL, "", srv.Client(), zaptest.NewLogger(t)), DefaultConfig(), zaptest.NewLogger(t))
			_, err := rt.Generate(context.Background(), "a prompt")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Generate() error = %v, want %v", err, tt.wantErr)
			}

			var statusErr *HTTPStatusError
			if tt.fake.failTxt && (!errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError) {
				t.Errorf("expected an HTTPStatusError with status 500, got %v", err)
			}
		})
	}
}
