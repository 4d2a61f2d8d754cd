package leaderboard

import (
	"context"
	"strings"

	"github.com/akashca-pro/codex-problem-service-sub000/internal/domain/keys"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/logger"
	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// ForceClear deletes every key of namespace, one scan page at a time. It is
// not atomic: readers may see a partially cleared namespace. Not for use on
// request paths.
func (e *Engine) ForceClear(ctx context.Context, namespace string) (deleted int, err error) {
	const op = "force_clear"
	defer func() { metrics.RecordMutation(op, err) }()

	if strings.TrimSpace(strings.Trim(namespace, ":")) == "" {
		return 0, invalid(op, "namespace must not be empty")
	}
	if err := keys.Validate(namespace); err != nil {
		return 0, &Error{Op: op, Kind: ErrValidation, Err: err}
	}
	r := keys.New(namespace)

	var cursor uint64
	for {
		if err := ctx.Err(); err != nil {
			return deleted, storeErr(op, err)
		}
		page, next, err := e.store.Scan(ctx, cursor, r.Prefix(), e.scanBatch)
		if err != nil {
			return deleted, storeErr(op, err)
		}
		metrics.RecordScanBatch(len(page))
		page = owned(r, page)
		if len(page) > 0 {
			n, err := e.store.Del(ctx, page...)
			if err != nil {
				return deleted, storeErr(op, err)
			}
			deleted += int(n)
			metrics.AddForceClearedKeys(int(n))
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	e.log.Info(ctx, "namespace cleared", logger.String("namespace", namespace), logger.Int("keys_deleted", deleted))
	return deleted, nil
}

// owned keeps the keys r builds, dropping keys that only share its prefix.
func owned(r keys.Resolver, page []string) []string {
	out := make([]string, 0, len(page))
	for _, k := range page {
		if r.Owns(k) {
			out = append(out, k)
		}
	}
	return out
}

// scanNamespace collects every key of r's namespace.
func (e *Engine) scanNamespace(ctx context.Context, r keys.Resolver) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		page, next, err := e.store.Scan(ctx, cursor, r.Prefix(), e.scanBatch)
		if err != nil {
			return nil, err
		}
		metrics.RecordScanBatch(len(page))
		out = append(out, owned(r, page)...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
