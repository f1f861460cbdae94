package blobstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// The local store keeps each blob as an envelope: a magic header, a file
// count, then per file an identifier and a length-prefixed body. Readers
// always get the decoded file bodies, never the envelope itself.

var envelopeMagic = []byte("MBQ1")

const maxIdentifierLen = 1<<16 - 1

type envelopeFile struct {
	Identifier string
	Data       []byte
}

var errCorruptEnvelope = errors.New("corrupt blob envelope")

func writeEnvelopeHeader(w io.Writer, count uint16) error {
	if _, err := w.Write(envelopeMagic); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, count)
}

func writeEnvelopeEntryHeader(w io.Writer, identifier string, size uint64) error {
	if len(identifier) > maxIdentifierLen {
		return fmt.Errorf("identifier too long")
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(identifier))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, identifier); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, size)
}

func readEnvelope(r io.Reader) ([]envelopeFile, error) {
	magic := make([]byte, len(envelopeMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptEnvelope, err)
	}
	if !bytes.Equal(magic, envelopeMagic) {
		return nil, fmt.Errorf("%w: bad magic", errCorruptEnvelope)
	}

	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptEnvelope, err)
	}

	files := make([]envelopeFile, 0, count)
	for i := 0; i < int(count); i++ {
		var idLen uint16
		if err := binary.Read(r, binary.BigEndian, &idLen); err != nil {
			return nil, fmt.Errorf("%w: file %d: %v", errCorruptEnvelope, i, err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("%w: file %d identifier: %v", errCorruptEnvelope, i, err)
		}
		var size uint64
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: file %d size: %v", errCorruptEnvelope, i, err)
		}
		data, err := io.ReadAll(io.LimitReader(r, int64(size)))
		if err != nil {
			return nil, err
		}
		if uint64(len(data)) != size {
			return nil, fmt.Errorf("%w: file %d truncated", errCorruptEnvelope, i)
		}
		files = append(files, envelopeFile{Identifier: string(id), Data: data})
	}
	return files, nil
}

// requireSingleFile enforces the one-logical-file rule for downloads.
func requireSingleFile(blobID string, count int) error {
	switch {
	case count == 0:
		return fmt.Errorf("%w: %s", ErrEmptyBlob, blobID)
	case count > 1:
		return fmt.Errorf("%w: %s has %d files", ErrMultipleFiles, blobID, count)
	default:
		return nil
	}
}
