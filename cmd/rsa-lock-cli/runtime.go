package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"rsalock.dev/lock/consensus"
	"rsalock.dev/lock/crypto"
	"rsalock.dev/lock/node"
	"rsalock.dev/lock/rsalib"
)

type Request struct {
	Op string `json:"op"`

	TxHashHex      string   `json:"tx_hash,omitempty"`
	Witnesses      []string `json:"witnesses,omitempty"`
	PlaceholderLen *int     `json:"placeholder_len,omitempty"`

	BundleHex string `json:"bundle_hex,omitempty"`

	LockHex       *string `json:"lock_hex,omitempty"`
	InputTypeHex  *string `json:"input_type_hex,omitempty"`
	OutputTypeHex *string `json:"output_type_hex,omitempty"`
	WitnessHex    string  `json:"witness_hex,omitempty"`

	Tx      json.RawMessage `json:"tx,omitempty"`
	KeySize uint32          `json:"key_size,omitempty"`
}

type Response struct {
	Ok  bool   `json:"ok"`
	Err string `json:"err,omitempty"`

	DigestHex      string `json:"digest,omitempty"`
	TxHashHex      string `json:"tx_hash,omitempty"`
	CodeHashHex    string `json:"code_hash,omitempty"`
	FingerprintHex string `json:"fingerprint,omitempty"`

	KeySize      uint32 `json:"key_size,omitempty"`
	Exponent     uint32 `json:"exponent,omitempty"`
	ModulusHex   string `json:"modulus_hex,omitempty"`
	SignatureHex string `json:"signature_hex,omitempty"`

	WitnessHex    string  `json:"witness_hex,omitempty"`
	LockHex       *string `json:"lock_hex,omitempty"`
	InputTypeHex  *string `json:"input_type_hex,omitempty"`
	OutputTypeHex *string `json:"output_type_hex,omitempty"`
}

var hasher = crypto.StdProvider{}

func writeResp(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

// writeLockErr reports taxonomy errors by name so fixtures stay stable when
// messages change.
func writeLockErr(w io.Writer, err error) {
	if code, ok := consensus.CodeOf(err); ok {
		writeResp(w, Response{Ok: false, Err: code.String()})
		return
	}
	writeResp(w, Response{Ok: false, Err: err.Error()})
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func parseExactHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := decodeHex(s)
	if err != nil || len(b) != 32 {
		return out, fmt.Errorf("bad hash32")
	}
	copy(out[:], b)
	return out, nil
}

func decodeOptHex(s *string) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	b, err := decodeHex(*s)
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

func optHex(b []byte) *string {
	if b == nil {
		return nil
	}
	s := hex.EncodeToString(b)
	return &s
}

func runFromStdin() {
	serve(os.Stdin, os.Stdout)
}

func serve(r io.Reader, w io.Writer) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		writeResp(w, Response{Ok: false, Err: fmt.Sprintf("bad request: %v", err)})
		return
	}

	switch req.Op {
	case "digest":
		txHash, err := parseExactHex32(req.TxHashHex)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad tx_hash"})
			return
		}
		witnesses := make([][]byte, 0, len(req.Witnesses))
		for _, s := range req.Witnesses {
			b, err := decodeHex(s)
			if err != nil {
				writeResp(w, Response{Ok: false, Err: "bad witness hex"})
				return
			}
			witnesses = append(witnesses, b)
		}
		placeholder := 0
		if req.PlaceholderLen != nil {
			placeholder = *req.PlaceholderLen
		} else if len(witnesses) > 0 {
			// Same rule as the lock: the placeholder is as long as the lock
			// actually carried in witness 0.
			auth, err := consensus.ParseWitnessArgs(witnesses[0])
			if err != nil {
				writeLockErr(w, err)
				return
			}
			placeholder = len(auth.Lock)
		}
		digest, err := consensus.ComputeDigest(hasher, txHash, witnesses, placeholder)
		if err != nil {
			writeLockErr(w, err)
			return
		}
		writeResp(w, Response{Ok: true, DigestHex: hex.EncodeToString(digest[:])})

	case "tx_hash", "tx_digest":
		tx, err := node.UnmarshalTxJSON(req.Tx)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: fmt.Sprintf("bad tx: %v", err)})
			return
		}
		h := tx.Hash(hasher)
		resp := Response{Ok: true, TxHashHex: hex.EncodeToString(h[:])}
		if req.Op == "tx_digest" {
			digest, err := node.TxDigest(hasher, tx, req.KeySize)
			if err != nil {
				writeLockErr(w, err)
				return
			}
			resp.DigestHex = hex.EncodeToString(digest[:])
		}
		writeResp(w, resp)

	case "decode_bundle", "fingerprint":
		raw, err := decodeHex(req.BundleHex)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad bundle hex"})
			return
		}
		b, err := consensus.DecodeBundle(raw)
		if err != nil {
			writeLockErr(w, err)
			return
		}
		resp := Response{Ok: true, FingerprintHex: b.Fingerprint(hasher).String()}
		if req.Op == "decode_bundle" {
			resp.KeySize = b.KeySize
			resp.Exponent = b.Exponent
			resp.ModulusHex = hex.EncodeToString(b.Modulus)
			resp.SignatureHex = hex.EncodeToString(b.Signature)
		}
		writeResp(w, resp)

	case "encode_witness":
		var wa consensus.WitnessArgs
		var err error
		for _, f := range []struct {
			dst *[]byte
			src *string
		}{{&wa.Lock, req.LockHex}, {&wa.InputType, req.InputTypeHex}, {&wa.OutputType, req.OutputTypeHex}} {
			if *f.dst, err = decodeOptHex(f.src); err != nil {
				writeResp(w, Response{Ok: false, Err: "bad field hex"})
				return
			}
		}
		writeResp(w, Response{Ok: true, WitnessHex: hex.EncodeToString(wa.Serialize())})

	case "parse_witness":
		raw, err := decodeHex(req.WitnessHex)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad witness hex"})
			return
		}
		wa, err := consensus.ParseWitnessArgs(raw)
		if err != nil {
			writeLockErr(w, err)
			return
		}
		writeResp(w, Response{
			Ok:            true,
			LockHex:       optHex(wa.Lock),
			InputTypeHex:  optHex(wa.InputType),
			OutputTypeHex: optHex(wa.OutputType),
		})

	case "lib_hash":
		h := rsalib.CodeHash(hasher)
		writeResp(w, Response{Ok: true, CodeHashHex: hex.EncodeToString(h[:])})

	default:
		writeResp(w, Response{Ok: false, Err: "unknown op"})
	}
}
