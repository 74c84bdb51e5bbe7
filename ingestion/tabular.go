package ingestion

import (
	"context"
	"fmt"
	"iter"

	"github.com/poiesic/datajobs/core"
)

// SendTabularData sends every row of rows as one payload, keyed by columns.
// Rows are pulled from the sequence TabularPageSize at a time and each row is
// then sent as SendObject would, in order, so memory stays bounded for large
// result sets and WaitAfterSend applies per row.
//
// An invalid row stops the call with a validation error. Rows before it stay
// sent; rows after it are not read.
func (i *Ingester) SendTabularData(ctx context.Context, rows iter.Seq[[]any], columns []string, dest core.Destination) error {
	if err := core.ValidateColumns(columns); err != nil {
		return err
	}
	if rows == nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidTabularData, core.ErrNilRows)
	}

	pageSize := i.cfg.TabularPageSize
	page := make([][]any, 0, pageSize)
	sent := 0

	for row := range rows {
		page = append(page, row)
		if len(page) < pageSize {
			continue
		}
		if err := i.sendPage(ctx, page, sent, columns, dest); err != nil {
			return err
		}
		sent += len(page)
		page = page[:0]
	}
	if err := i.sendPage(ctx, page, sent, columns, dest); err != nil {
		return err
	}
	i.logger.Debug("tabular data sent", "rows", sent+len(page), "table", dest.Table)
	return nil
}

// sendPage sends each row of page; first is the index of page[0] among all rows.
func (i *Ingester) sendPage(ctx context.Context, page [][]any, first int, columns []string, dest core.Destination) error {
	for n, row := range page {
		payload, err := core.RowToPayload(row, columns)
		if err != nil {
			return fmt.Errorf("row %d: %w", first+n, err)
		}
		if err := i.SendObject(ctx, core.Envelope{Payload: payload, Destination: dest}); err != nil {
			return fmt.Errorf("row %d: %w", first+n, err)
		}
	}
	return nil
}
