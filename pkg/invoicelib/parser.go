package invoicelib

import (
	"io"

	"github.com/rezonia/invoice-engine/internal/model"
	"github.com/rezonia/invoice-engine/internal/ubl"
)

// Codec converts invoices to and from UBL 2.1 XML
type Codec interface {
	// Encode renders the invoice with totals derived from its lines
	Encode(inv *model.Invoice) ([]byte, error)

	// Decode reads a UBL document, substituting defaults for missing fields
	Decode(r io.Reader) (*model.Invoice, error)
}

// CodecOptions configures the codec
type CodecOptions struct {
	// Spaces per nesting level; 0 gives compact output
	Indent int
}

// DefaultCodecOptions returns default codec options
func DefaultCodecOptions() CodecOptions {
	return CodecOptions{Indent: 2}
}

type codec struct {
	encoder *ubl.Encoder
	decoder *ubl.Decoder
}

// NewCodec creates a codec with default options
func NewCodec() Codec {
	return NewCodecWithOptions(DefaultCodecOptions())
}

// NewCodecWithOptions creates a codec with the given options
func NewCodecWithOptions(opts CodecOptions) Codec {
	return &codec{
		encoder: ubl.NewEncoder(ubl.WithIndent(opts.Indent)),
		decoder: ubl.NewDecoder(),
	}
}

func (c *codec) Encode(inv *model.Invoice) ([]byte, error) {
	encoded, err := c.encoder.Encode(inv)
	if err != nil {
		return nil, err
	}
	return encoded.XML, nil
}

func (c *codec) Decode(r io.Reader) (*model.Invoice, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewDecodeError("failed to read input", err)
	}
	return c.decoder.Decode(data)
}
