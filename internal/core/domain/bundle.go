package domain

import (
	"bytes"
	"io"
)

// Block is the rewritten, namespace-isolated text of one module.
type Block struct {
	ID   ModuleID
	Key  string
	Text string
}

// Bundle is the emitter's intermediate form: the runtime shim followed by one
// block per module in emission order, wrapped in Prologue and Epilogue.
type Bundle struct {
	Prologue string
	Shim     string
	Blocks   []Block
	Epilogue string
}

// Bytes concatenates the bundle into the final script.
func (b *Bundle) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = b.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes the final script to w.
func (b *Bundle) WriteTo(w io.Writer) (int64, error) {
	var total int64
	write := func(s string) error {
		n, err := io.WriteString(w, s)
		total += int64(n)
		return err
	}

	if err := write(b.Prologue); err != nil {
		return total, err
	}
	if err := write(b.Shim); err != nil {
		return total, err
	}
	for _, block := range b.Blocks {
		if err := write(block.Text); err != nil {
			return total, err
		}
	}
	if err := write(b.Epilogue); err != nil {
		return total, err
	}
	return total, nil
}
