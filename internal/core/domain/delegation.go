package domain

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// SignatureLength is the size of a delegation token signature in bytes.
const SignatureLength = 20

// UserNone is the uid of a token that has not been issued.
const UserNone uint32 = 0xFFFFFFFF

// DelegationToken identifies an issued delegation token.
//
// Issuance and signature verification live outside this module; the
// canceled-token log only records and replays the token fields.
type DelegationToken struct {
	UID         uint32
	Seq         uint32
	KeyID       int64
	IssuedTime  int64 // unix seconds
	ValidForSec uint32
	Signature   [SignatureLength]byte
}

// Expires returns the unix time after which the token is no longer valid.
func (t DelegationToken) Expires() int64 {
	return t.IssuedTime + int64(t.ValidForSec)
}

// String returns the dot separated text form:
//
//	uid.seq.keyid.issued.validfor.signature
//
// Integers are hex, the signature is lowercase hex. The form never
// contains '/' so it can be embedded in checkpoint records.
func (t DelegationToken) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(t.UID), 16))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(uint64(t.Seq), 16))
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(t.KeyID, 16))
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(t.IssuedTime, 16))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(uint64(t.ValidForSec), 16))
	b.WriteByte('.')
	b.WriteString(hex.EncodeToString(t.Signature[:]))
	return b.String()
}

// ParseDelegationToken parses the form produced by String.
func ParseDelegationToken(s string) (DelegationToken, error) {
	var t DelegationToken
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return t, ErrMalformed.WithDetails(fmt.Sprintf("delegation token: %d fields", len(parts)))
	}

	uid, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return t, ErrMalformed.WithDetails("delegation token uid").WithCause(err)
	}
	seq, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return t, ErrMalformed.WithDetails("delegation token seq").WithCause(err)
	}
	keyID, err := strconv.ParseInt(parts[2], 16, 64)
	if err != nil {
		return t, ErrMalformed.WithDetails("delegation token key id").WithCause(err)
	}
	issued, err := strconv.ParseInt(parts[3], 16, 64)
	if err != nil {
		return t, ErrMalformed.WithDetails("delegation token issued time").WithCause(err)
	}
	valid, err := strconv.ParseUint(parts[4], 16, 32)
	if err != nil {
		return t, ErrMalformed.WithDetails("delegation token validity").WithCause(err)
	}
	sig, err := hex.DecodeString(parts[5])
	if err != nil || len(sig) != SignatureLength {
		return t, ErrMalformed.WithDetails("delegation token signature")
	}

	t.UID = uint32(uid)
	t.Seq = uint32(seq)
	t.KeyID = keyID
	t.IssuedTime = issued
	t.ValidForSec = uint32(valid)
	copy(t.Signature[:], sig)
	return t, nil
}
