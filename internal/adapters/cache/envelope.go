package cache

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"go.trai.ch/zerr"
)

// envelopeMagic prefixes compressed cache files so Load never guesses.
// Plain JSON bodies start with '{' and can never collide with it.
var envelopeMagic = []byte("BGL1")

func wrapEnvelope(body []byte) []byte {
	var buf bytes.Buffer
	buf.Write(envelopeMagic)

	// Errors from the in-memory writer are impossible at this level; the
	// encoder only fails on invalid options.
	enc, _ := zstd.NewWriter(&buf)
	_, _ = enc.Write(body)
	_ = enc.Close()

	return buf.Bytes()
}

func unwrapEnvelope(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, envelopeMagic) {
		return data, nil
	}

	dec, err := zstd.NewReader(bytes.NewReader(data[len(envelopeMagic):]))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open compression envelope")
	}
	defer dec.Close()

	body, err := io.ReadAll(dec)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to decompress cache body")
	}
	return body, nil
}
