package gossip

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// A stream transport's read boundary is not a message boundary, so every
// envelope travels behind an explicit 4-byte big-endian length prefix.
const maxFrameSize = 1 << 20

func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return errors.Errorf("frame of %d bytes exceeds limit", len(data))
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))

	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameSize {
		return nil, errors.Errorf("frame of %d bytes exceeds limit", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeEnvelope(w io.Writer, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	return writeFrame(w, data)
}

func readEnvelope(r io.Reader) (Envelope, error) {
	var env Envelope

	data, err := readFrame(r)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, errors.Wrap(err, "decode envelope")
	}
	return env, nil
}
