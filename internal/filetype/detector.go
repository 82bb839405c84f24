package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Info contains detected file type information for a document source.
type Info struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// Detect classifies raw source bytes using magic bytes, not filename.
// Only PDF is renderable; everything else is reported as unsupported so the
// loader can fail the document before any placeholder exists.
func Detect(data []byte) *Info {
	mtype := mimetype.Detect(data)

	info := &Info{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Msg("detected source type")

	if mtype.Is("application/pdf") {
		info.Supported = true
		info.Description = "PDF document"
		return info
	}

	info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	return info
}

// IsPDF reports whether the bytes carry a PDF magic header.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is("application/pdf")
}
