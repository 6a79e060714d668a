package oplog

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

type wirePayload struct {
	Seq       int64 `json:"seq"`
	Status    int64 `json:"st,omitempty"`
	Timestamp int64 `json:"ts"`

	Data json.RawMessage `json:"data,omitempty"`

	// EncryptedData is base64 of adaptive.Cipher.Encrypt(Data).
	EncryptedData string `json:"enc,omitempty"`
}

func encodeEntryFrame(e *Entry, cipher adaptive.Cipher) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("oplog: entry is nil")
	}
	if !e.Op.Valid() {
		return nil, ErrInvalidOp
	}

	p := wirePayload{
		Seq:       e.Seq,
		Status:    e.Status,
		Timestamp: e.Timestamp,
	}
	if len(e.Data) > 0 {
		if cipher == nil {
			p.Data = e.Data
		} else {
			encrypted, err := cipher.Encrypt(e.Data, opAAD(e.Op))
			if err != nil {
				return nil, fmt.Errorf("oplog: encrypt: %w", err)
			}
			p.EncryptedData = base64.StdEncoding.EncodeToString(encrypted)
		}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("oplog: marshal payload: %w", err)
	}

	typeByte := []byte{byte(e.Op)}
	crc := crc32.ChecksumIEEE(append(typeByte, payload...))

	// Length = CRC(4) + Op(1) + Payload.
	length := uint32(4 + 1 + len(payload))
	if length > maxFrameSize {
		return nil, fmt.Errorf("oplog: entry of %d bytes exceeds frame limit", length)
	}

	out := make([]byte, 0, 4+int(length))
	out = binary.BigEndian.AppendUint32(out, length)
	out = binary.BigEndian.AppendUint32(out, crc)
	out = append(out, typeByte...)
	out = append(out, payload...)
	return out, nil
}

// verifyFrame checks the frame length and CRC without decoding the payload.
func verifyFrame(frame []byte) error {
	// Frame layout: [crc32:4][op:1][payload...]
	if len(frame) < 5 {
		return ErrCorruptedEntry
	}
	if crc32.ChecksumIEEE(frame[4:]) != binary.BigEndian.Uint32(frame[:4]) {
		return ErrChecksumMismatch
	}
	return nil
}

func decodeEntryFrame(frame []byte, cipher adaptive.Cipher) (*Entry, error) {
	if err := verifyFrame(frame); err != nil {
		return nil, err
	}
	typeByte := frame[4]
	payload := frame[5:]

	op := Op(typeByte)
	if !op.Valid() {
		return nil, ErrInvalidOp
	}

	var p wirePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("oplog: unmarshal payload: %w", err)
	}

	out := &Entry{
		Seq:       p.Seq,
		Op:        op,
		Status:    p.Status,
		Timestamp: p.Timestamp,
		Data:      p.Data,
	}
	if p.EncryptedData == "" {
		return out, nil
	}
	if cipher == nil {
		return nil, fmt.Errorf("oplog: encrypted entry requires cipher")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(p.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("oplog: decode encrypted data: %w", err)
	}
	plain, err := cipher.Decrypt(ciphertext, opAAD(op))
	if err != nil {
		return nil, fmt.Errorf("oplog: decrypt: %w", err)
	}
	out.Data = plain
	return out, nil
}

// opAAD is the associated data binding a ciphertext to its op byte.
func opAAD(op Op) []byte {
	return []byte{'o', 'p', byte(op)}
}
