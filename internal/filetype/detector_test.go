package filetype

import "testing"

// minimal single-page PDF header plus body padding; enough for magic detection
var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func TestDetectPDF(t *testing.T) {
	info := Detect(pdfBytes)
	if !info.Supported {
		t.Fatalf("PDF bytes reported unsupported: %+v", info)
	}
	if info.MIMEType != "application/pdf" {
		t.Errorf("MIMEType = %q, want application/pdf", info.MIMEType)
	}
}

func TestDetectRejectsNonPDF(t *testing.T) {
	for name, data := range map[string][]byte{
		"plain text": []byte("just some text, definitely not a document"),
		"png":        {0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0},
		"empty":      {},
	} {
		info := Detect(data)
		if info.Supported {
			t.Errorf("%s: reported supported (%s)", name, info.MIMEType)
		}
		if info.Description == "" {
			t.Errorf("%s: missing description", name)
		}
	}
}

func TestIsPDF(t *testing.T) {
	if !IsPDF(pdfBytes) {
		t.Error("IsPDF(pdf) = false")
	}
	if IsPDF([]byte("<html></html>")) {
		t.Error("IsPDF(html) = true")
	}
}
