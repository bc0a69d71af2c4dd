package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/normalize"
	"go.uber.org/zap"
)

// Canonical field names shared by the json field maps and the css selector
// maps. Unrecognized names are logged and skipped so a schema can evolve
// ahead of the binary.
const (
	fieldSourceID          = "sourceId"
	fieldSourceURL         = "sourceUrl"
	fieldSourceTitle       = "sourceTitle"
	fieldSourceCreatedAt   = "sourceCreatedAt"
	fieldSourceDescription = "sourceDescriptionHtml"
	fieldSourceParameters  = "sourceParameters"
	fieldSourceEquipment   = "sourceEquipment"
	fieldSourcePhotos      = "sourcePhotos"
	fieldPricePLN          = "pricePln"
	fieldYear              = "year"
	fieldMileage           = "mileage"
	fieldSellerName        = "sellerName"
	fieldSellerID          = "sellerId"
	fieldSellerType        = "sellerType"
	fieldSellerLocation    = "sellerLocation"
	fieldSellerMemberSince = "sellerMemberSince"
)

// recordBuilder accumulates canonical fields into a partial VehicleRecord,
// applying the per-field normalizers and the defaulting pass.
type recordBuilder struct {
	record    *models.VehicleRecord
	seller    models.SellerInfo
	sellerSet bool
	parser    *Parser
	now       time.Time
}

func newRecordBuilder(p *Parser, siteKey string) *recordBuilder {
	now := p.now()
	return &recordBuilder{
		parser: p,
		now:    now,
		record: &models.VehicleRecord{
			Source:    models.Source(siteKey),
			Status:    models.StatusNew,
			Features:  models.StringList{},
			ScrapedAt: now,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// set routes one raw extracted value into the record. Numeric fields pass
// through their dedicated normalizers, the title through the text
// normalizer; raw provenance fields are stored as-is.
func (b *recordBuilder) set(field string, raw interface{}) {
	if raw == nil {
		return
	}
	switch field {
	case fieldSourceID:
		b.record.SourceID = coerceString(raw)
	case fieldSourceURL:
		b.record.SourceURL = coerceString(raw)
	case fieldSourceTitle:
		b.record.SourceTitle = coerceString(raw)
		b.record.Title = normalize.Text(b.record.SourceTitle)
	case fieldSourceCreatedAt:
		t := normalize.DateAt(coerceString(raw), b.now)
		b.record.SourceCreatedAt = &t
	case fieldSourceDescription:
		b.record.SourceDescriptionHTML = coerceString(raw)
	case fieldSourceParameters:
		b.record.SourceParameters = paramsFromValue(raw)
	case fieldSourceEquipment:
		b.record.SourceEquipment = equipmentFromValue(raw)
	case fieldSourcePhotos:
		urls := photoURLs(raw)
		b.record.SourcePhotos = models.StringList(urls)
		b.record.Photos = models.StringList(normalize.ImageURLs(urls))
	case fieldPricePLN:
		b.record.PricePLN = normalize.Price(raw)
		if b.parser.eurPlnRate > 0 {
			eur := normalize.ConvertPLNToEUR(b.record.PricePLN, b.parser.eurPlnRate)
			b.record.PriceEUR = math.Round(eur*100) / 100
		}
	case fieldYear:
		b.record.Year = normalize.Year(coerceString(raw))
	case fieldMileage:
		b.record.Mileage = normalize.Mileage(coerceString(raw))
	case fieldSellerName:
		b.seller.Name = coerceString(raw)
		b.sellerSet = true
	case fieldSellerID:
		b.seller.ID = coerceString(raw)
		b.sellerSet = true
	case fieldSellerType:
		b.seller.Type = coerceString(raw)
		b.sellerSet = true
	case fieldSellerLocation:
		b.seller.Location = coerceString(raw)
		b.sellerSet = true
	case fieldSellerMemberSince:
		b.seller.MemberSince = coerceString(raw)
		b.sellerSet = true
	default:
		b.parser.logger.Debug("Skipping unknown canonical field",
			zap.String("field", field))
	}
}

// build finishes the record, assembling the seller block when any seller
// field was present.
func (b *recordBuilder) build() *models.VehicleRecord {
	if b.sellerSet {
		b.record.SellerInfo = &models.SellerInfoJSON{SellerInfo: b.seller}
	}
	return b.record
}

// coerceString renders a JSON value as a string for stub output and
// normalizer input.
func coerceString(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", n)
	}
}

// paramsFromValue converts a scraped parameters value to a key→value map.
// Accepts the label/value object array most sites embed, a plain object,
// or a JSON-encoded string of either.
func paramsFromValue(v interface{}) models.Params {
	switch val := v.(type) {
	case []interface{}:
		out := make(models.Params, len(val))
		for _, elem := range val {
			obj, ok := elem.(map[string]interface{})
			if !ok {
				continue
			}
			key := firstString(obj, "label", "key", "name")
			if key == "" {
				continue
			}
			out[key] = coerceString(obj["value"])
		}
		return out
	case map[string]interface{}:
		out := make(models.Params, len(val))
		for k, item := range val {
			out[k] = coerceString(item)
		}
		return out
	case string:
		var decoded interface{}
		if err := json.Unmarshal([]byte(val), &decoded); err != nil {
			return nil
		}
		return paramsFromValue(decoded)
	}
	return nil
}

// equipmentFromValue converts a nested equipment array (category with a
// list of features, each a labeled object or plain string) into the
// category→features map.
func equipmentFromValue(v interface{}) models.Equipment {
	groups, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make(models.Equipment, len(groups))
	for _, g := range groups {
		obj, ok := g.(map[string]interface{})
		if !ok {
			continue
		}
		category := firstString(obj, "label", "category", "name")
		if category == "" {
			continue
		}
		items, ok := firstValue(obj, "values", "items", "features").([]interface{})
		if !ok {
			continue
		}
		features := make([]string, 0, len(items))
		for _, item := range items {
			switch it := item.(type) {
			case string:
				features = append(features, it)
			case map[string]interface{}:
				if label := firstString(it, "label", "name", "value"); label != "" {
					features = append(features, label)
				}
			}
		}
		out[category] = features
	}
	return out
}

// photoURLs flattens a photo list of plain URLs or photo objects.
func photoURLs(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		if s, isStr := v.(string); isStr && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		switch e := elem.(type) {
		case string:
			out = append(out, e)
		case map[string]interface{}:
			if u := firstString(e, "url", "large", "src", "href"); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstValue(obj map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// isTruthy mirrors the loose truthiness the auto-detection indicators rely
// on: present, non-empty, non-zero, non-false.
func isTruthy(v interface{}) bool {
	switch n := v.(type) {
	case nil:
		return false
	case string:
		return n != ""
	case bool:
		return n
	case float64:
		return n != 0
	case []interface{}:
		return len(n) > 0
	case map[string]interface{}:
		return len(n) > 0
	}
	return true
}
