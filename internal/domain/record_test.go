package domain

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/John-Robertt/imginject/internal/jsonx"
)

func TestRecord_Title(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{name: "普通标题", in: `{"title":"red apple"}`, want: "red apple", wantOK: true},
		{name: "首尾空白", in: `{"title":"  pear "}`, want: "pear", wantOK: true},
		{name: "缺失", in: `{"notitle":true}`, wantOK: false},
		{name: "空字符串", in: `{"title":""}`, wantOK: false},
		{name: "非字符串", in: `{"title":42}`, wantOK: false},
		{name: "null", in: `{"title":null}`, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			if err := json.Unmarshal([]byte(tt.in), &r); err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			got, ok := r.Title()
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("Title()=(%q,%v)，期望 (%q,%v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRecord_SetImagesOverwritesInPlace(t *testing.T) {
	var r Record
	in := `{"title":"t","images":[{"data":"old","type":"image/png","url":"http://old"}],"tail":1}`
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	img := EncodedImage{Data: "QUJD", Type: ImageTypeJPEG, URL: "http://x/a.jpg?w=1&h=2"}
	if err := r.SetImages([]EncodedImage{img}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := jsonx.Marshal(r)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := `{"title":"t","images":[{"data":"QUJD","type":"image/jpeg","url":"http://x/a.jpg?w=1&h=2"}],"tail":1}`
	if string(b) != want {
		t.Fatalf("got=%s\nwant=%s", b, want)
	}

	got, ok := r.Images()
	if !ok || !reflect.DeepEqual(got, []EncodedImage{img}) {
		t.Fatalf("Images()=%+v ok=%v", got, ok)
	}
}

func TestRecord_SetImagesNilWritesEmptyArray(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"notitle":true}`), &r); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := r.SetImages(nil); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, _ := jsonx.Marshal(r)
	if want := `{"notitle":true,"images":[]}`; string(b) != want {
		t.Fatalf("got=%s want=%s", b, want)
	}
	if got, want := r.Keys(), []string{"notitle", "images"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys=%v want=%v", got, want)
	}
}

func TestRecord_RejectsNonObject(t *testing.T) {
	var recs []*Record
	if err := json.Unmarshal([]byte(`[{"title":"a"}, 5]`), &recs); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}
