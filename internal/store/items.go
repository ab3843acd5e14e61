package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/events"
	"github.com/lherron/nestmig/internal/paths"
)

// ItemStore handles item persistence operations.
type ItemStore struct {
	store *Store
}

// ItemCreateParams contains parameters for creating a new item.
type ItemCreateParams struct {
	Path       paths.Path
	Parent     *paths.Path
	Creator    string
	LastEditor string // defaults to Creator if empty
	Content    string
	Hidden     bool
	HasSchema  bool
	Classes    []string
}

const itemColumns = `namespace, full_path, parent, creator, last_editor, content_hash,
	hidden, has_schema, migrated_from, redirect_to, created_at, updated_at`

// ContentHash returns the digest stored for item content
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Create inserts a new item and logs an item.created event.
func (is *ItemStore) Create(ctx context.Context, params ItemCreateParams) error {
	lastEditor := params.LastEditor
	if lastEditor == "" {
		lastEditor = params.Creator
	}

	return is.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		_, err := tx.Exec(`
			INSERT INTO items (namespace, space, name, full_path, parent, creator, last_editor,
				content, content_hash, hidden, has_schema)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, params.Path.Namespace(), params.Path.Space.Local(), params.Path.Name, params.Path.Local(),
			pathString(params.Parent), params.Creator, lastEditor,
			params.Content, ContentHash(params.Content), boolToInt(params.Hidden), boolToInt(params.HasSchema))
		if err != nil {
			return fmt.Errorf("failed to create item %s: %w", params.Path, err)
		}

		for _, class := range params.Classes {
			_, err := tx.Exec(`INSERT OR IGNORE INTO item_classes (namespace, full_path, class) VALUES (?, ?, ?)`,
				params.Path.Namespace(), params.Path.Local(), class)
			if err != nil {
				return fmt.Errorf("failed to attach class %s: %w", class, err)
			}
		}

		if err := ew.LogItemCreated(tx, params.Creator, params.Path.String()); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// Exists reports whether an item is stored at p
func (is *ItemStore) Exists(ctx context.Context, p paths.Path) (bool, error) {
	var one int
	err := is.store.db.QueryRowContext(ctx, `
		SELECT 1 FROM items WHERE namespace = ? AND full_path = ?
	`, p.Namespace(), p.Local()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check item %s: %w", p, err)
	}
	return true, nil
}

// ReadItem returns the metadata of the item at p, or nil when absent.
func (is *ItemStore) ReadItem(ctx context.Context, p paths.Path) (*domain.Item, error) {
	row := is.store.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE namespace = ? AND full_path = ?
	`, p.Namespace(), p.Local())

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read item %s: %w", p, err)
	}

	classes, err := is.classes(ctx, p)
	if err != nil {
		return nil, err
	}
	item.Classes = classes
	return item, nil
}

// Get is ReadItem returning domain.ErrNotFound for a missing item
func (is *ItemStore) Get(ctx context.Context, p paths.Path) (*domain.Item, error) {
	item, err := is.ReadItem(ctx, p)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", p, domain.ErrNotFound)
	}
	return item, nil
}

// List returns every item of a namespace ordered by full path. Classes are
// not loaded.
func (is *ItemStore) List(ctx context.Context, namespace string) ([]*domain.Item, error) {
	rows, err := is.store.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE namespace = ?
		ORDER BY full_path
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count returns the number of items of a namespace
func (is *ItemStore) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := is.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE namespace = ?`, namespace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// Move renames src to dst, records src as dst's origin and rewrites the
// declared parent of every item pointing at src. With AutoRedirect a hidden
// stub redirecting to dst is left at src. Logs an item.moved event.
func (is *ItemStore) Move(ctx context.Context, src, dst paths.Path, opts domain.MoveOptions) error {
	actor := opts.Actor
	if actor == "" {
		actor = is.store.actor
	}

	return is.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		var one int
		err := tx.QueryRow(`SELECT 1 FROM items WHERE namespace = ? AND full_path = ?`,
			src.Namespace(), src.Local()).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("item %s: %w", src, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check source %s: %w", src, err)
		}

		err = tx.QueryRow(`SELECT 1 FROM items WHERE namespace = ? AND full_path = ?`,
			dst.Namespace(), dst.Local()).Scan(&one)
		if err == nil {
			return fmt.Errorf("target %s already exists", dst)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check target %s: %w", dst, err)
		}

		_, err = tx.Exec(`
			UPDATE items
			SET namespace = ?, space = ?, name = ?, full_path = ?,
			    migrated_from = ?, last_editor = ?
			WHERE namespace = ? AND full_path = ?
		`, dst.Namespace(), dst.Space.Local(), dst.Name, dst.Local(),
			src.String(), actor,
			src.Namespace(), src.Local())
		if err != nil {
			return fmt.Errorf("failed to move %s: %w", src, err)
		}

		if _, err := tx.Exec(`UPDATE items SET parent = ? WHERE parent = ?`, dst.String(), src.String()); err != nil {
			return fmt.Errorf("failed to relink children of %s: %w", src, err)
		}

		if opts.AutoRedirect {
			_, err := tx.Exec(`
				INSERT INTO items (namespace, space, name, full_path, creator, last_editor, hidden, redirect_to)
				VALUES (?, ?, ?, ?, ?, ?, 1, ?)
			`, src.Namespace(), src.Space.Local(), src.Name, src.Local(), actor, actor, dst.String())
			if err != nil {
				return fmt.Errorf("failed to create redirect at %s: %w", src, err)
			}
		}

		if err := ew.LogItemMoved(tx, actor, src.String(), dst.String(), opts.AutoRedirect); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// Delete removes the item at p and logs an item.deleted event.
func (is *ItemStore) Delete(ctx context.Context, p paths.Path) error {
	return is.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		res, err := tx.Exec(`DELETE FROM items WHERE namespace = ? AND full_path = ?`, p.Namespace(), p.Local())
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("item %s: %w", p, domain.ErrNotFound)
		}

		if err := ew.LogItemDeleted(tx, is.store.actor, p.String()); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// SetParent changes the declared parent of p and logs an item.parent_changed event.
func (is *ItemStore) SetParent(ctx context.Context, p, parent paths.Path) error {
	return is.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		var old *string
		err := tx.QueryRow(`SELECT parent FROM items WHERE namespace = ? AND full_path = ?`,
			p.Namespace(), p.Local()).Scan(&old)
		if err == sql.ErrNoRows {
			return fmt.Errorf("item %s: %w", p, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read parent of %s: %w", p, err)
		}

		_, err = tx.Exec(`UPDATE items SET parent = ? WHERE namespace = ? AND full_path = ?`,
			parent.String(), p.Namespace(), p.Local())
		if err != nil {
			return fmt.Errorf("failed to set parent of %s: %w", p, err)
		}

		if err := ew.LogParentChanged(tx, is.store.actor, p.String(), old, parent.String()); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

func (is *ItemStore) classes(ctx context.Context, p paths.Path) ([]string, error) {
	rows, err := is.store.db.QueryContext(ctx, `
		SELECT class FROM item_classes WHERE namespace = ? AND full_path = ? ORDER BY class
	`, p.Namespace(), p.Local())
	if err != nil {
		return nil, fmt.Errorf("failed to read classes of %s: %w", p, err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	// String intermediates for nullable references and times
	var ns, fullPath, createdAt, updatedAt string
	var parent, migratedFrom, redirectTo *string
	var hidden, hasSchema int
	item := &domain.Item{}

	err := row.Scan(&ns, &fullPath, &parent, &item.Creator, &item.LastEditor, &item.ContentHash,
		&hidden, &hasSchema, &migratedFrom, &redirectTo, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p, err := paths.Parse(fullPath, ns)
	if err != nil {
		return nil, fmt.Errorf("corrupt item path %q: %w", fullPath, err)
	}
	item.Path = p
	item.Hidden = hidden != 0
	item.HasSchema = hasSchema != 0
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)

	if item.Parent, err = parseRef(parent, ns); err != nil {
		return nil, err
	}
	if item.MigratedFrom, err = parseRef(migratedFrom, ns); err != nil {
		return nil, err
	}
	if item.RedirectTo, err = parseRef(redirectTo, ns); err != nil {
		return nil, err
	}
	return item, nil
}

// parseRef parses a stored path reference; NULL and '' are no reference.
func parseRef(s *string, ns string) (*paths.Path, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	p, err := paths.Parse(*s, ns)
	if err != nil {
		return nil, fmt.Errorf("corrupt path reference %q: %w", *s, err)
	}
	return &p, nil
}

func pathString(p *paths.Path) *string {
	if p == nil {
		return nil
	}
	s := p.String()
	return &s
}
