package imgx

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/imginject/internal/domain"
)

func TestClassifyType(t *testing.T) {
	cases := map[string]string{
		"image/png":                domain.ImageTypePNG,
		"IMAGE/PNG; charset=x":     domain.ImageTypePNG,
		"image/gif":                domain.ImageTypeGIF,
		"image/webp":               domain.ImageTypeWebP,
		"image/jpeg":               domain.ImageTypeJPEG,
		"":                         domain.ImageTypeJPEG,
		"application/octet-stream": domain.ImageTypeJPEG,
	}
	for in, want := range cases {
		if got := ClassifyType(in); got != want {
			t.Fatalf("ClassifyType(%q)=%q，期望 %q", in, got, want)
		}
	}
}

func TestFetch_EncodesBody(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	u := srv.URL + "/a.png"
	img, err := Fetch(context.Background(), srv.Client(), u)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if img.Type != domain.ImageTypePNG {
		t.Fatalf("type 不一致：%q", img.Type)
	}
	if img.URL != u {
		t.Fatalf("url 不一致：%q", img.URL)
	}
	if img.Data != base64.StdEncoding.EncodeToString(payload) {
		t.Fatalf("data 不一致：%q", img.Data)
	}
}

func TestFetch_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/404":
			http.NotFound(w, r)
		case "/empty":
			w.Header().Set("Content-Type", "image/jpeg")
		}
	}))
	defer srv.Close()

	for _, p := range []string{"/404", "/empty"} {
		if _, err := Fetch(context.Background(), srv.Client(), srv.URL+p); err == nil {
			t.Fatalf("%s 期望错误，但得到 nil", p)
		}
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Fetch(ctx, srv.Client(), srv.URL); err == nil {
		t.Fatalf("ctx 已取消时期望错误")
	}
}
