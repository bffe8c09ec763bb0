package completion

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/fieldops-portal/internal/domain/entity"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Field names producers use for the two list-valued fields
const (
	fieldExpenses        = "expenses"
	fieldExpensesData    = "expenses_data"
	fieldAttachments     = "attachments"
	fieldAttachmentsData = "attachments_data"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DetailFetcher loads a full submission payload by identifier
type DetailFetcher func(ctx context.Context, submissionID string) (*entity.RawSubmission, error)

// extractStrategy is one way of finding a list-valued field in a payload
type extractStrategy struct {
	name    string
	extract func(raw *entity.RawSubmission) ([]interface{}, bool)
}

// Normalizer turns arbitrarily shaped submission payloads into a Submission
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize extracts notes, expenses and attachments. Expenses and attachments
// are looked up independently through the strategy chain; when neither the
// payload nor the detail fetch holds a field it is empty, which is not an error.
// fetch may be nil.
func (n *Normalizer) Normalize(ctx context.Context, raw *entity.RawSubmission, fetch DetailFetcher) *entity.Submission {
	sub := &entity.Submission{
		ID:         firstString(raw, "id", "submission_id"),
		WorkItemID: firstString(raw, "work_item_id", "job_order_id", "task_id"),
		LiaisonID:  firstString(raw, "liaison_id"),
		Notes:      firstString(raw, "notes", "note", "remarks"),
		CreatedAt:  parseTime(firstValue(raw, "created_at", "createdAt")),
	}

	detail := n.lazyDetail(ctx, sub.ID, fetch)

	expenseEntries := n.extractList(raw, detail, fieldExpenses, fieldExpensesData)
	sub.Expenses = make([]entity.Expense, 0, len(expenseEntries))
	for _, entry := range expenseEntries {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		sub.Expenses = append(sub.Expenses, toExpense(obj))
	}

	attachmentEntries := n.extractList(raw, detail, fieldAttachments, fieldAttachmentsData)
	sub.Attachments = make([]*entity.RemoteAttachment, 0, len(attachmentEntries))
	for idx, entry := range attachmentEntries {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		att := toRemoteAttachment(obj)
		if att == nil {
			n.logger.Warn("Skipping stored attachment without identifier",
				zap.String("submission_id", sub.ID),
				zap.Int("index", idx))
			continue
		}
		sub.Attachments = append(sub.Attachments, att)
	}

	return sub
}

// extractList tries the strategy chain on the payload, then on the detail payload
func (n *Normalizer) extractList(raw *entity.RawSubmission, detail func() *entity.RawSubmission, primary, secondary string) []interface{} {
	chain := listChain(primary, secondary)

	if list, strategy, ok := runChain(chain, raw); ok {
		n.logger.Debug("Field extracted",
			zap.String("field", primary),
			zap.String("strategy", strategy))
		return list
	}

	fetched := detail()
	if fetched == nil {
		return nil
	}
	if list, strategy, ok := runChain(chain, fetched); ok {
		n.logger.Debug("Field recovered from detail fetch",
			zap.String("field", primary),
			zap.String("strategy", strategy))
		return list
	}
	return nil
}

// lazyDetail fetches the detail payload at most once per normalization
func (n *Normalizer) lazyDetail(ctx context.Context, submissionID string, fetch DetailFetcher) func() *entity.RawSubmission {
	var (
		done   bool
		result *entity.RawSubmission
	)
	return func() *entity.RawSubmission {
		if done {
			return result
		}
		done = true

		if fetch == nil || submissionID == "" {
			return nil
		}
		fetched, err := fetch(ctx, submissionID)
		if err != nil {
			n.logger.Warn("Secondary submission fetch failed, treating fields as empty",
				zap.String("submission_id", submissionID),
				zap.Error(err))
			return nil
		}
		result = fetched
		return result
	}
}

func listChain(primary, secondary string) []extractStrategy {
	return []extractStrategy{
		fieldStrategy("primary", primary),
		fieldStrategy("secondary", secondary),
		nestedStrategy(primary, secondary),
	}
}

func runChain(chain []extractStrategy, raw *entity.RawSubmission) ([]interface{}, string, bool) {
	if raw == nil {
		return nil, "", false
	}
	for _, s := range chain {
		if list, ok := s.extract(raw); ok {
			return list, s.name, true
		}
	}
	return nil, "", false
}

func fieldStrategy(name, key string) extractStrategy {
	return extractStrategy{
		name: name,
		extract: func(raw *entity.RawSubmission) ([]interface{}, bool) {
			v, _ := raw.Get(key)
			return asList(v)
		},
	}
}

// nestedStrategy scans the payload's object values, in key order,
// for the first one holding any of keys.
func nestedStrategy(keys ...string) extractStrategy {
	return extractStrategy{
		name: "nested",
		extract: func(raw *entity.RawSubmission) ([]interface{}, bool) {
			for _, k := range raw.Keys {
				obj, ok := raw.Fields[k].(map[string]interface{})
				if !ok {
					continue
				}
				for _, key := range keys {
					if list, ok := asList(obj[key]); ok {
						return list, true
					}
				}
			}
			return nil, false
		},
	}
}

// asList accepts an array, or a string holding a JSON array
func asList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if !strings.HasPrefix(s, "[") {
			return nil, false
		}
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var list []interface{}
		if err := dec.Decode(&list); err != nil {
			return nil, false
		}
		return list, true
	}
	return nil, false
}

func toExpense(obj map[string]interface{}) entity.Expense {
	id := stringValue(obj["id"])
	if id == "" {
		id = uuid.NewString()
	}
	return entity.Expense{
		ID:          id,
		Description: stringValue(obj["description"]),
		Amount:      stringValue(obj["amount"]),
	}
}

func toRemoteAttachment(obj map[string]interface{}) *entity.RemoteAttachment {
	serverID := firstObjString(obj, "id", "attachment_id")
	if serverID == "" {
		return nil
	}

	name := firstObjString(obj, "file_name", "name", "filename", "original_name")
	path := firstObjString(obj, "file_path", "path", "url")
	hint := firstObjString(obj, "file_type", "mime_type", "type")

	if name == "" && path != "" && path != entity.ManualPathSentinel {
		name = filepath.Base(path)
	}

	return &entity.RemoteAttachment{
		ID:          uuid.NewString(),
		DisplayName: name,
		ServerID:    serverID,
		RemotePath:  path,
		Display:     displayKind(name, path, hint),
	}
}

// displayKind checks the sentinel path, then the type hint, then the extension
func displayKind(name, path, hint string) entity.DisplayKind {
	if path == entity.ManualPathSentinel {
		return entity.DisplayKindManual
	}

	hint = strings.ToLower(strings.TrimSpace(hint))
	switch {
	case strings.HasPrefix(hint, "image"):
		return entity.DisplayKindImage
	case hint == "manual":
		return entity.DisplayKindManual
	case hint != "":
		return entity.DisplayKindDocument
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := imageExtensions[ext]; ok {
		return entity.DisplayKindImage
	}
	return entity.DisplayKindDocument
}

func firstValue(raw *entity.RawSubmission, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw.Get(k); ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(raw *entity.RawSubmission, keys ...string) string {
	for _, k := range keys {
		v, _ := raw.Get(k)
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}

func firstObjString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := stringValue(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

// stringValue renders scalar payload values as text; anything else is empty
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	case json.Number:
		if secs, err := t.Int64(); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	case float64:
		return time.Unix(int64(t), 0).UTC()
	}
	return time.Time{}
}
