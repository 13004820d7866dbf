package internal

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// maxAttachmentSize caps what a client will inline into a message. The
// server's frame limit is 1 MiB, and base64 inflates the payload by a third.
const maxAttachmentSize = 512 * 1024

// loadAttachment reads a local file and packages it as an inline attachment.
// The content type comes from the extension when known, otherwise from
// sniffing the first bytes.
func loadAttachment(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxAttachmentSize {
		return nil, fmt.Errorf("%s is %d bytes, the limit is %d", filepath.Base(path), info.Size(), maxAttachmentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Attachment{
		Name:    filepath.Base(path),
		Type:    contentType,
		DataURL: "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
		Size:    info.Size(),
	}, nil
}
