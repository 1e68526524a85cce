package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ssargent/recordfile/pkg/api"
	"github.com/ssargent/recordfile/pkg/feature"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatTable:
		return nil
	default:
		return fmt.Errorf("unknown format %q, use json or table", format)
	}
}

// recordPrinter writes records as they are read. Table output is aligned
// once Close is called.
type recordPrinter struct {
	json  *json.Encoder
	table *tabwriter.Writer
}

func newRecordPrinter(w io.Writer, format string) *recordPrinter {
	p := &recordPrinter{}
	if format == formatJSON {
		p.json = json.NewEncoder(w)
		return p
	}
	p.table = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(p.table, "ORDINAL\tOFFSET\tFEATURE\tVALUE")
	return p
}

// view builds the printable form of a payload. Payloads that do not decode
// as feature maps, and every payload when raw is set, are kept as bytes.
func view(ordinal uint64, offset int64, payload []byte, raw bool) api.RecordView {
	v := api.RecordView{Ordinal: ordinal, Offset: offset}
	if !raw {
		if m, err := feature.Decode(payload); err == nil {
			v.Features = m
			return v
		}
	}
	v.Raw = payload
	return v
}

func (p *recordPrinter) print(v api.RecordView) error {
	if p.json != nil {
		return p.json.Encode(v)
	}

	if v.Features == nil {
		_, err := fmt.Fprintf(p.table, "%d\t%d\t<raw>\t%s\n", v.Ordinal, v.Offset, hex.EncodeToString(v.Raw))
		return err
	}
	if len(v.Features) == 0 {
		_, err := fmt.Fprintf(p.table, "%d\t%d\t<empty>\t\n", v.Ordinal, v.Offset)
		return err
	}
	for _, key := range v.Features.Keys() {
		if _, err := fmt.Fprintf(p.table, "%d\t%d\t%s\t%s\n", v.Ordinal, v.Offset, key, v.Features[key]); err != nil {
			return err
		}
	}
	return nil
}

func (p *recordPrinter) Close() error {
	if p.table == nil {
		return nil
	}
	return p.table.Flush()
}
