package node

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"rsalock.dev/lock/consensus"
)

type outPointJSON struct {
	TxHash string `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

type cellDepJSON struct {
	OutPoint outPointJSON `json:"out_point"`
	DepType  string       `json:"dep_type"`
}

type inputJSON struct {
	PreviousOutput outPointJSON `json:"previous_output"`
	Since          uint64       `json:"since"`
}

type scriptJSON struct {
	CodeHash string `json:"code_hash"`
	HashType string `json:"hash_type"`
	Args     string `json:"args"`
}

type outputJSON struct {
	Capacity uint64      `json:"capacity"`
	Lock     scriptJSON  `json:"lock"`
	Type     *scriptJSON `json:"type,omitempty"`
}

type txJSON struct {
	Version     uint32        `json:"version"`
	CellDeps    []cellDepJSON `json:"cell_deps"`
	HeaderDeps  []string      `json:"header_deps"`
	Inputs      []inputJSON   `json:"inputs"`
	Outputs     []outputJSON  `json:"outputs"`
	OutputsData []string      `json:"outputs_data"`
	Witnesses   []string      `json:"witnesses"`
}

func hex0x(b []byte) string { return "0x" + hex.EncodeToString(b) }

func unhex0x(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func depTypeName(t byte) (string, error) {
	switch t {
	case consensus.DEP_TYPE_CODE:
		return "code", nil
	case consensus.DEP_TYPE_DEP_GROUP:
		return "dep_group", nil
	default:
		return "", fmt.Errorf("unknown dep type %d", t)
	}
}

func parseDepType(s string) (byte, error) {
	switch s {
	case "code":
		return consensus.DEP_TYPE_CODE, nil
	case "dep_group":
		return consensus.DEP_TYPE_DEP_GROUP, nil
	default:
		return 0, fmt.Errorf("unknown dep type %q", s)
	}
}

func hashTypeName(t byte) (string, error) {
	switch t {
	case consensus.HASH_TYPE_DATA:
		return "data", nil
	case consensus.HASH_TYPE_TYPE:
		return "type", nil
	default:
		return "", fmt.Errorf("unknown hash type %d", t)
	}
}

func parseHashType(s string) (byte, error) {
	switch s {
	case "data":
		return consensus.HASH_TYPE_DATA, nil
	case "type":
		return consensus.HASH_TYPE_TYPE, nil
	default:
		return 0, fmt.Errorf("unknown hash type %q", s)
	}
}

func toScriptJSON(s consensus.Script) (scriptJSON, error) {
	ht, err := hashTypeName(s.HashType)
	if err != nil {
		return scriptJSON{}, err
	}
	return scriptJSON{CodeHash: hex0x(s.CodeHash[:]), HashType: ht, Args: hex0x(s.Args)}, nil
}

func fromScriptJSON(j scriptJSON) (consensus.Script, error) {
	var s consensus.Script
	var err error
	if s.CodeHash, err = ParseHash32(j.CodeHash); err != nil {
		return s, fmt.Errorf("code_hash: %w", err)
	}
	if s.HashType, err = parseHashType(j.HashType); err != nil {
		return s, err
	}
	if s.Args, err = unhex0x(j.Args); err != nil {
		return s, fmt.Errorf("args: %w", err)
	}
	return s, nil
}

func fromOutPointJSON(j outPointJSON) (consensus.OutPoint, error) {
	h, err := ParseHash32(j.TxHash)
	if err != nil {
		return consensus.OutPoint{}, fmt.Errorf("tx_hash: %w", err)
	}
	return consensus.OutPoint{TxHash: h, Index: j.Index}, nil
}

func toOutPointJSON(p consensus.OutPoint) outPointJSON {
	return outPointJSON{TxHash: hex0x(p.TxHash[:]), Index: p.Index}
}

// MarshalTxJSON renders tx as an indented JSON fixture.
func MarshalTxJSON(tx *consensus.Transaction) ([]byte, error) {
	j := txJSON{
		Version:     tx.Version,
		CellDeps:    []cellDepJSON{},
		HeaderDeps:  []string{},
		Inputs:      []inputJSON{},
		Outputs:     []outputJSON{},
		OutputsData: []string{},
		Witnesses:   []string{},
	}
	for _, d := range tx.CellDeps {
		dt, err := depTypeName(d.DepType)
		if err != nil {
			return nil, err
		}
		j.CellDeps = append(j.CellDeps, cellDepJSON{OutPoint: toOutPointJSON(d.OutPoint), DepType: dt})
	}
	for _, h := range tx.HeaderDeps {
		j.HeaderDeps = append(j.HeaderDeps, hex0x(h[:]))
	}
	for _, in := range tx.Inputs {
		j.Inputs = append(j.Inputs, inputJSON{PreviousOutput: toOutPointJSON(in.PreviousOutput), Since: in.Since})
	}
	for _, o := range tx.Outputs {
		lock, err := toScriptJSON(o.Lock)
		if err != nil {
			return nil, err
		}
		oj := outputJSON{Capacity: o.Capacity, Lock: lock}
		if o.Type != nil {
			t, err := toScriptJSON(*o.Type)
			if err != nil {
				return nil, err
			}
			oj.Type = &t
		}
		j.Outputs = append(j.Outputs, oj)
	}
	for _, d := range tx.OutputsData {
		j.OutputsData = append(j.OutputsData, hex0x(d))
	}
	for _, w := range tx.Witnesses {
		j.Witnesses = append(j.Witnesses, hex0x(w))
	}
	return json.MarshalIndent(j, "", "  ")
}

// UnmarshalTxJSON parses a fixture written by MarshalTxJSON.
func UnmarshalTxJSON(b []byte) (*consensus.Transaction, error) {
	var j txJSON
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return nil, fmt.Errorf("tx json: %w", err)
	}
	tx := &consensus.Transaction{Version: j.Version}
	for i, d := range j.CellDeps {
		p, err := fromOutPointJSON(d.OutPoint)
		if err != nil {
			return nil, fmt.Errorf("cell_deps[%d]: %w", i, err)
		}
		dt, err := parseDepType(d.DepType)
		if err != nil {
			return nil, fmt.Errorf("cell_deps[%d]: %w", i, err)
		}
		tx.CellDeps = append(tx.CellDeps, consensus.CellDep{OutPoint: p, DepType: dt})
	}
	for i, h := range j.HeaderDeps {
		v, err := ParseHash32(h)
		if err != nil {
			return nil, fmt.Errorf("header_deps[%d]: %w", i, err)
		}
		tx.HeaderDeps = append(tx.HeaderDeps, v)
	}
	for i, in := range j.Inputs {
		p, err := fromOutPointJSON(in.PreviousOutput)
		if err != nil {
			return nil, fmt.Errorf("inputs[%d]: %w", i, err)
		}
		tx.Inputs = append(tx.Inputs, consensus.CellInput{PreviousOutput: p, Since: in.Since})
	}
	for i, o := range j.Outputs {
		lock, err := fromScriptJSON(o.Lock)
		if err != nil {
			return nil, fmt.Errorf("outputs[%d].lock: %w", i, err)
		}
		out := consensus.CellOutput{Capacity: o.Capacity, Lock: lock}
		if o.Type != nil {
			t, err := fromScriptJSON(*o.Type)
			if err != nil {
				return nil, fmt.Errorf("outputs[%d].type: %w", i, err)
			}
			out.Type = &t
		}
		tx.Outputs = append(tx.Outputs, out)
	}
	for i, d := range j.OutputsData {
		v, err := unhex0x(d)
		if err != nil {
			return nil, fmt.Errorf("outputs_data[%d]: %w", i, err)
		}
		tx.OutputsData = append(tx.OutputsData, v)
	}
	for i, w := range j.Witnesses {
		v, err := unhex0x(w)
		if err != nil {
			return nil, fmt.Errorf("witnesses[%d]: %w", i, err)
		}
		tx.Witnesses = append(tx.Witnesses, v)
	}
	return tx, nil
}

// FormatOutPoint renders "0x<tx_hash>:<index>".
func FormatOutPoint(p consensus.OutPoint) string {
	return hex0x(p.TxHash[:]) + ":" + strconv.FormatUint(uint64(p.Index), 10)
}

func ParseOutPoint(s string) (consensus.OutPoint, error) {
	h, idx, ok := strings.Cut(s, ":")
	if !ok {
		return consensus.OutPoint{}, fmt.Errorf("out point %q: want <tx_hash>:<index>", s)
	}
	txHash, err := ParseHash32(h)
	if err != nil {
		return consensus.OutPoint{}, fmt.Errorf("out point %q: %w", s, err)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return consensus.OutPoint{}, fmt.Errorf("out point %q: %w", s, err)
	}
	return consensus.OutPoint{TxHash: txHash, Index: uint32(n)}, nil
}
