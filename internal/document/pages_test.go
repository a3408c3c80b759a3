package document

import (
	"encoding/base64"
	"errors"
	"os"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDecodePages(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngHeader)

	tests := []struct {
		name     string
		images   []string
		wantMIME string
		wantErr  bool
	}{
		{"plain base64 png", []string{raw}, "image/png", false},
		{"data url jpeg", []string{"data:image/jpeg;base64," + raw}, "image/jpeg", false},
		{"unknown bytes default to png", []string{base64.StdEncoding.EncodeToString([]byte("hello world"))}, "image/png", false},
		{"invalid characters", []string{"not base64!!"}, "", true},
		{"empty string", []string{""}, "", true},
		{"prefix only", []string{"data:image/png;base64,"}, "", true},
		{"missing padding does not round-trip", []string{"aGVsbG8"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := DecodePages(tt.images)
			if tt.wantErr {
				var invalid *InvalidImageError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected InvalidImageError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePages() error = %v", err)
			}
			if pages[0].MIMEType != tt.wantMIME {
				t.Errorf("MIMEType = %q, want %q", pages[0].MIMEType, tt.wantMIME)
			}
		})
	}
}

func TestDecodePages_ReportsFailingIndex(t *testing.T) {
	good := base64.StdEncoding.EncodeToString(pngHeader)
	_, err := DecodePages([]string{good, good, "%%%"})

	var invalid *InvalidImageError
	if !errors.As(err, &invalid) || invalid.Index != 2 {
		t.Fatalf("expected failure at index 2, got %v", err)
	}
	if invalid.Error() != "image 3 is not valid base64 image data" {
		t.Errorf("Error() = %q", invalid.Error())
	}
}

func TestDecodePages_Empty(t *testing.T) {
	if _, err := DecodePages(nil); !errors.Is(err, ErrNoImages) {
		t.Errorf("error = %v, want ErrNoImages", err)
	}
}

func TestValidateType(t *testing.T) {
	if err := ValidateType(TypePDF); err != nil {
		t.Errorf("pdf rejected: %v", err)
	}
	if err := ValidateType(TypeImage); err != nil {
		t.Errorf("image rejected: %v", err)
	}
	if err := ValidateType("docx"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("docx error = %v, want ErrUnsupportedType", err)
	}
}

func TestPageWord(t *testing.T) {
	if PageWord(1) != "page" || PageWord(2) != "pages" {
		t.Error("unexpected pluralization")
	}
}

func TestInspectPDFRejectsGarbage(t *testing.T) {
	if _, err := InspectPDF([]byte("definitely not a pdf")); err == nil {
		t.Error("expected error for non-PDF bytes")
	}
}

func TestInspectPDF_ScannedDocument(t *testing.T) {
	data, err := os.ReadFile("testdata/scanned-two-pages.pdf")
	if err != nil {
		t.Fatal(err)
	}

	info, err := InspectPDF(data)
	if err != nil {
		t.Fatalf("InspectPDF() error = %v", err)
	}
	if info.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", info.PageCount)
	}
	if info.HasText {
		t.Error("HasText = true for a PDF without content streams")
	}
}
