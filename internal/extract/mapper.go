package extract

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"docintake/internal/model"
)

// kindToFieldType assigns the deterministic FieldType tag per record kind.
var kindToFieldType = map[string]model.FieldType{
	KindLine:      model.FieldTypeText,
	KindKeyValue:  model.FieldTypeKeyValuePair,
	KindTableCell: model.FieldTypeTableCell,
	KindFormField: model.FieldTypeFormField,
}

// MapFields normalizes a provider result into domain fields for one document.
// Confidence is copied through unchanged; an absent confidence stays absent
// rather than being coerced to 0, since absence and low-confidence are
// distinct for downstream review. Table cells are addressed by
// (table, row, column) so positional identity survives re-verification.
func MapFields(documentID string, res *Result, source string, now time.Time) []model.DocumentField {
	if res == nil || len(res.Fields) == 0 {
		return nil
	}
	out := make([]model.DocumentField, 0, len(res.Fields))
	for _, f := range res.Fields {
		ft, ok := kindToFieldType[f.Kind]
		if !ok {
			ft = model.FieldTypeText
		}

		name := f.Name
		if f.Kind == KindTableCell && f.TableIndex != nil && f.RowIndex != nil && f.ColumnIndex != nil {
			name = fmt.Sprintf("table%d[r%d,c%d]", *f.TableIndex, *f.RowIndex, *f.ColumnIndex)
		}

		out = append(out, model.DocumentField{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			Name:        name,
			Value:       f.Value,
			FieldType:   ft,
			Confidence:  f.Confidence,
			BoundingBox: f.BoundingBox,
			PageNumber:  f.Page,
			ExtractedAt: now,
			Source:      source,
		})
	}
	return out
}
