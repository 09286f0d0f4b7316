package services

import (
	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageQuery is a cursor page request. Cursor is the created_at of the
// last item already seen; nil starts from the newest item.
type PageQuery struct {
	Cursor *int64 `form:"cursor"`
	Limit  int    `form:"limit"`
}

func (q PageQuery) normalizedLimit() int {
	switch {
	case q.Limit < 1:
		return DefaultPageLimit
	case q.Limit > MaxPageLimit:
		return MaxPageLimit
	}
	return q.Limit
}

// Page is one slice of a newest-first listing. NextCursor is nil once the
// listing is exhausted.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor *int64 `json:"next_cursor,omitempty"`
}

// paginate reads one page of query ordered by created_at then id, both
// descending. Rows sharing the boundary second are never split across
// pages: the page grows to include all of them, because the next page
// only sees rows strictly older than the cursor.
func paginate[T any](query *gorm.DB, q PageQuery, key func(T) (int64, uint)) (Page[T], error) {
	limit := q.normalizedLimit()
	base := query.Session(&gorm.Session{})

	scoped := base
	if q.Cursor != nil {
		scoped = scoped.Where("created_at < ?", *q.Cursor)
	}

	var rows []T
	if err := scoped.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return Page[T]{}, err
	}
	if len(rows) <= limit {
		if rows == nil {
			rows = []T{}
		}
		return Page[T]{Items: rows}, nil
	}

	lastTS, lastID := key(rows[limit-1])
	peekTS, _ := key(rows[limit])
	items := rows[:limit:limit]

	if peekTS == lastTS {
		var rest []T
		if err := base.Where("created_at = ? AND id < ?", lastTS, lastID).Order("id DESC").Find(&rest).Error; err != nil {
			return Page[T]{}, err
		}
		items = append(items, rest...)
	}

	return Page[T]{Items: items, NextCursor: &lastTS}, nil
}
