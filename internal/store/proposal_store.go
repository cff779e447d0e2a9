package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jjenkins/cornerwise/internal/blob"
	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
)

const proposalColumns = `id, case_number, address, other_addresses,
	ST_Y(location) AS lat, ST_X(location) AS lng, region_name, complete,
	status, summary, description, source, updated, modified, created`

type proposalRow struct {
	ID             int64     `db:"id"`
	CaseNumber     string    `db:"case_number"`
	Address        string    `db:"address"`
	OtherAddresses string    `db:"other_addresses"`
	Lat            float64   `db:"lat"`
	Lng            float64   `db:"lng"`
	RegionName     string    `db:"region_name"`
	Complete       bool      `db:"complete"`
	Status         string    `db:"status"`
	Summary        string    `db:"summary"`
	Description    string    `db:"description"`
	Source         string    `db:"source"`
	Updated        time.Time `db:"updated"`
	Modified       time.Time `db:"modified"`
	Created        time.Time `db:"created"`
}

func (r *proposalRow) toModel() model.Proposal {
	return model.Proposal{
		ID:             r.ID,
		CaseNumber:     r.CaseNumber,
		Address:        r.Address,
		OtherAddresses: r.OtherAddresses,
		Location:       geo.Point{Lat: r.Lat, Lng: r.Lng},
		RegionName:     r.RegionName,
		Complete:       r.Complete,
		Status:         r.Status,
		Summary:        r.Summary,
		Description:    r.Description,
		Source:         r.Source,
		Updated:        r.Updated,
		Modified:       r.Modified,
		Created:        r.Created,
	}
}

const attributeColumns = `id, proposal_id, name, handle, published, text_value, date_value`

type attributeRow struct {
	ID         int64      `db:"id"`
	ProposalID int64      `db:"proposal_id"`
	Name       string     `db:"name"`
	Handle     string     `db:"handle"`
	Published  time.Time  `db:"published"`
	TextValue  *string    `db:"text_value"`
	DateValue  *time.Time `db:"date_value"`
}

func (r *attributeRow) toModel() model.Attribute {
	return model.Attribute{
		ID:         r.ID,
		ProposalID: r.ProposalID,
		Name:       r.Name,
		Handle:     r.Handle,
		Published:  r.Published,
		TextValue:  r.TextValue,
		DateValue:  r.DateValue,
	}
}

const documentColumns = `id, proposal_id, event_id, url, title, field, published,
	document_path, fulltext_path, thumbnail_path, encoding, created`

type documentRow struct {
	ID            int64      `db:"id"`
	ProposalID    int64      `db:"proposal_id"`
	EventID       *int64     `db:"event_id"`
	URL           string     `db:"url"`
	Title         string     `db:"title"`
	Field         string     `db:"field"`
	Published     *time.Time `db:"published"`
	DocumentPath  string     `db:"document_path"`
	FulltextPath  string     `db:"fulltext_path"`
	ThumbnailPath string     `db:"thumbnail_path"`
	Encoding      string     `db:"encoding"`
	Created       time.Time  `db:"created"`
}

func (r *documentRow) toModel() model.Document {
	return model.Document{
		ID:            r.ID,
		ProposalID:    r.ProposalID,
		EventID:       r.EventID,
		URL:           r.URL,
		Title:         r.Title,
		Field:         r.Field,
		Published:     r.Published,
		DocumentPath:  r.DocumentPath,
		FulltextPath:  r.FulltextPath,
		ThumbnailPath: r.ThumbnailPath,
		Encoding:      r.Encoding,
		Created:       r.Created,
	}
}

const imageColumns = `id, proposal_id, document_id, url, image_path, thumbnail_path,
	width, height, skip_cache, priority, source, created`

type imageRow struct {
	ID            int64     `db:"id"`
	ProposalID    int64     `db:"proposal_id"`
	DocumentID    *int64    `db:"document_id"`
	URL           string    `db:"url"`
	ImagePath     string    `db:"image_path"`
	ThumbnailPath string    `db:"thumbnail_path"`
	Width         int       `db:"width"`
	Height        int       `db:"height"`
	SkipCache     bool      `db:"skip_cache"`
	Priority      int       `db:"priority"`
	Source        string    `db:"source"`
	Created       time.Time `db:"created"`
}

func (r *imageRow) toModel() model.Image {
	return model.Image{
		ID:            r.ID,
		ProposalID:    r.ProposalID,
		DocumentID:    r.DocumentID,
		URL:           r.URL,
		ImagePath:     r.ImagePath,
		ThumbnailPath: r.ThumbnailPath,
		Width:         r.Width,
		Height:        r.Height,
		SkipCache:     r.SkipCache,
		Priority:      r.Priority,
		Source:        r.Source,
		Created:       r.Created,
	}
}

type changesetRow struct {
	ID         int64     `db:"id"`
	ProposalID int64     `db:"proposal_id"`
	Changes    []byte    `db:"changes"`
	Created    time.Time `db:"created"`
}

func (r *changesetRow) toModel() (model.Changeset, error) {
	changes, err := model.DecodeChanges(r.Changes)
	if err != nil {
		return model.Changeset{}, fmt.Errorf("failed to decode changeset %d: %w", r.ID, err)
	}
	return model.Changeset{
		ID:         r.ID,
		ProposalID: r.ProposalID,
		Created:    r.Created,
		Changes:    changes,
	}, nil
}

// ProposalStore handles database operations for proposals and the records
// attached to them
type ProposalStore struct {
	db    *sqlx.DB
	blobs blob.Store
}

// NewProposalStore creates a new ProposalStore
func NewProposalStore(db *sqlx.DB, blobs blob.Store) *ProposalStore {
	return &ProposalStore{db: db, blobs: blobs}
}

// RecordUpdate runs apply against the stored record for caseNumber and saves
// the result in the same transaction
func (s *ProposalStore) RecordUpdate(ctx context.Context, caseNumber string, apply model.ApplyFunc) (*model.ProposalUpdate, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, caseNumber); err != nil {
		return nil, fmt.Errorf("failed to lock proposal %s: %w", caseNumber, err)
	}

	rec, err := s.loadRecord(ctx, tx, caseNumber)
	if err != nil {
		return nil, err
	}

	update, err := apply(rec)
	if err != nil {
		return nil, err
	}

	if err := s.saveProposal(ctx, tx, &update.Proposal); err != nil {
		return nil, err
	}
	pid := update.Proposal.ID

	for i := range update.Attributes {
		update.Attributes[i].ProposalID = pid
		if err := s.saveAttribute(ctx, tx, &update.Attributes[i]); err != nil {
			return nil, err
		}
	}

	for i := range update.Documents {
		update.Documents[i].ProposalID = pid
		if err := s.insertDocument(ctx, tx, &update.Documents[i]); err != nil {
			return nil, err
		}
	}

	for i := range update.Events {
		if err := s.upsertEvent(ctx, tx, pid, &update.Events[i]); err != nil {
			return nil, err
		}
	}

	if cs := update.Changeset; cs != nil {
		cs.ProposalID = pid
		if err := s.insertChangeset(ctx, tx, cs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit proposal %s: %w", caseNumber, err)
	}

	return update, nil
}

func (s *ProposalStore) loadRecord(ctx context.Context, tx *sqlx.Tx, caseNumber string) (*model.ProposalRecord, error) {
	rec := &model.ProposalRecord{}

	var row proposalRow
	err := tx.GetContext(ctx, &row, `SELECT `+proposalColumns+` FROM proposals WHERE case_number = $1`, caseNumber)
	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal %s: %w", caseNumber, err)
	}
	p := row.toModel()
	rec.Proposal = &p

	var attrs []attributeRow
	err = tx.SelectContext(ctx, &attrs, `SELECT `+attributeColumns+` FROM attributes WHERE proposal_id = $1 ORDER BY id`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes for %s: %w", caseNumber, err)
	}
	for i := range attrs {
		rec.Attributes = append(rec.Attributes, attrs[i].toModel())
	}

	err = tx.SelectContext(ctx, &rec.DocumentURLs, `SELECT url FROM documents WHERE proposal_id = $1 ORDER BY id`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents for %s: %w", caseNumber, err)
	}

	return rec, nil
}

func (s *ProposalStore) saveProposal(ctx context.Context, tx *sqlx.Tx, p *model.Proposal) error {
	query := `
		INSERT INTO proposals (case_number, address, other_addresses, location,
		                       region_name, complete, status, summary, description,
		                       source, updated, modified, created)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326), $6, $7, $8, $9,
		        $10, $11, $12, $13, $14)
		ON CONFLICT (case_number) DO UPDATE SET
			address = EXCLUDED.address,
			other_addresses = EXCLUDED.other_addresses,
			location = EXCLUDED.location,
			region_name = EXCLUDED.region_name,
			complete = EXCLUDED.complete,
			status = EXCLUDED.status,
			summary = EXCLUDED.summary,
			description = EXCLUDED.description,
			source = EXCLUDED.source,
			updated = EXCLUDED.updated,
			modified = EXCLUDED.modified
		RETURNING id, created
	`

	err := tx.QueryRowxContext(ctx, query,
		p.CaseNumber,
		p.Address,
		p.OtherAddresses,
		p.Location.Lng,
		p.Location.Lat,
		p.RegionName,
		p.Complete,
		p.Status,
		p.Summary,
		p.Description,
		p.Source,
		p.Updated,
		p.Modified,
		p.Created,
	).Scan(&p.ID, &p.Created)
	if err != nil {
		return fmt.Errorf("failed to save proposal %s: %w", p.CaseNumber, err)
	}
	return nil
}

func (s *ProposalStore) saveAttribute(ctx context.Context, tx *sqlx.Tx, a *model.Attribute) error {
	query := `
		INSERT INTO attributes (proposal_id, name, handle, published, text_value, date_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (proposal_id, handle) DO UPDATE SET
			name = EXCLUDED.name,
			published = EXCLUDED.published,
			text_value = EXCLUDED.text_value,
			date_value = EXCLUDED.date_value
		RETURNING id
	`

	err := tx.QueryRowxContext(ctx, query,
		a.ProposalID, a.Name, a.Handle, a.Published, a.TextValue, a.DateValue,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to save attribute %s: %w", a.Handle, err)
	}
	return nil
}

func (s *ProposalStore) insertDocument(ctx context.Context, tx *sqlx.Tx, d *model.Document) error {
	query := `
		INSERT INTO documents (proposal_id, event_id, url, title, field, published, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (proposal_id, url) DO NOTHING
		RETURNING id
	`

	err := tx.QueryRowxContext(ctx, query,
		d.ProposalID, d.EventID, d.URL, d.Title, d.Field, d.Published, d.Created,
	).Scan(&d.ID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", d.URL, err)
	}
	return nil
}

func (s *ProposalStore) upsertEvent(ctx context.Context, tx *sqlx.Tx, proposalID int64, eu *model.EventUpsert) error {
	e := &eu.Event
	var seconds *int64
	if e.Duration != nil {
		v := int64(e.Duration.Seconds())
		seconds = &v
	}

	query := `
		INSERT INTO events (title, date, duration_seconds, location, region_name,
		                    description, minutes, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date, title, region_name) DO UPDATE SET
			duration_seconds = COALESCE(EXCLUDED.duration_seconds, events.duration_seconds),
			location = EXCLUDED.location,
			description = EXCLUDED.description,
			minutes = EXCLUDED.minutes
		RETURNING id, created
	`
	err := tx.QueryRowxContext(ctx, query,
		e.Title, e.Date, seconds, e.Location, e.RegionName, e.Description, e.Minutes, e.Created,
	).Scan(&e.ID, &e.Created)
	if err != nil {
		return fmt.Errorf("failed to upsert event %q: %w", e.Title, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_proposals (event_id, proposal_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, e.ID, proposalID)
	if err != nil {
		return fmt.Errorf("failed to link event %d: %w", e.ID, err)
	}

	if len(eu.CaseNumbers) == 0 {
		return nil
	}
	// Case numbers with no proposal select no rows and are skipped
	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_proposals (event_id, proposal_id)
		SELECT $1, id FROM proposals WHERE case_number = ANY($2)
		ON CONFLICT DO NOTHING`, e.ID, pq.Array(eu.CaseNumbers))
	if err != nil {
		return fmt.Errorf("failed to link event %d to cases: %w", e.ID, err)
	}
	return nil
}

func (s *ProposalStore) insertChangeset(ctx context.Context, tx *sqlx.Tx, cs *model.Changeset) error {
	b, err := model.EncodeChanges(cs.Changes)
	if err != nil {
		return err
	}
	cs.Changes.Version = model.ChangesVersion

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO changesets (proposal_id, changes, created)
		VALUES ($1, $2, $3)
		RETURNING id`, cs.ProposalID, string(b), cs.Created,
	).Scan(&cs.ID)
	if err != nil {
		return fmt.Errorf("failed to insert changeset for proposal %d: %w", cs.ProposalID, err)
	}
	return nil
}

// builder accumulates WHERE clauses and their positional arguments
type builder struct {
	conds []string
	args  []interface{}
}

func (b *builder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) where(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *builder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func proposalQuerySQL(q model.ProposalQuery) (string, []interface{}) {
	b := &builder{}
	if len(q.IDs) > 0 {
		b.where("id = ANY(" + b.arg(pq.Array(q.IDs)) + ")")
	}
	if len(q.ExcludeIDs) > 0 {
		b.where("NOT (id = ANY(" + b.arg(pq.Array(q.ExcludeIDs)) + "))")
	}
	if len(q.CaseNumbers) > 0 {
		b.where("case_number = ANY(" + b.arg(pq.Array(q.CaseNumbers)) + ")")
	}
	if q.RegionName != "" {
		b.where("lower(region_name) = lower(" + b.arg(q.RegionName) + ")")
	}
	if q.Status != "" {
		b.where("lower(status) = lower(" + b.arg(q.Status) + ")")
	}
	if q.Address != "" {
		a := b.arg(strings.TrimSpace(q.Address))
		b.where("(lower(address) = lower(" + a + ") OR lower(" + a +
			") = ANY(string_to_array(lower(other_addresses), ';')))")
	}
	if q.Near != nil {
		b.where("ST_DWithin(location::geography, ST_GeomFromText(" + b.arg(q.Near.Center.WKT()) +
			", 4326)::geography, " + b.arg(q.Near.Radius.Meters()) + ")")
	}
	if q.Within != nil {
		b.where("ST_Contains(ST_GeomFromText(" + b.arg(q.Within.WKT()) + ", 4326), location)")
	}
	if q.CreatedAfter != nil {
		b.where("created > " + b.arg(*q.CreatedAfter))
	}
	if q.UpdatedAfter != nil {
		b.where("updated > " + b.arg(*q.UpdatedAfter))
	}
	if q.UpdatedUntil != nil {
		b.where("updated <= " + b.arg(*q.UpdatedUntil))
	}

	query := `SELECT ` + proposalColumns + ` FROM proposals` + b.clause() + ` ORDER BY updated DESC, id`
	if q.Limit > 0 {
		query += " LIMIT " + b.arg(q.Limit)
	}
	return query, b.args
}

// FindProposals returns the proposals matching q, most recently updated first
func (s *ProposalStore) FindProposals(ctx context.Context, q model.ProposalQuery) ([]model.Proposal, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query, args := proposalQuerySQL(q)

	var rows []proposalRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find proposals: %w", err)
	}

	proposals := make([]model.Proposal, 0, len(rows))
	for i := range rows {
		proposals = append(proposals, rows[i].toModel())
	}
	return proposals, nil
}

// GetProposal returns a proposal with everything attached to it
func (s *ProposalStore) GetProposal(ctx context.Context, id int64) (*model.ProposalDetail, error) {
	var row proposalRow
	err := s.db.GetContext(ctx, &row, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal %d: %w", id, err)
	}
	detail := &model.ProposalDetail{Proposal: row.toModel()}

	var attrs []attributeRow
	err = s.db.SelectContext(ctx, &attrs, `SELECT `+attributeColumns+` FROM attributes WHERE proposal_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes for %d: %w", id, err)
	}
	for i := range attrs {
		detail.Attributes = append(detail.Attributes, attrs[i].toModel())
	}

	if detail.Documents, err = s.DocumentsFor(ctx, []int64{id}, time.Time{}, nil); err != nil {
		return nil, err
	}
	if detail.Images, err = s.ImagesFor(ctx, []int64{id}, time.Time{}, nil); err != nil {
		return nil, err
	}

	var events []eventRow
	err = s.db.SelectContext(ctx, &events, `
		SELECT `+prefixed("e", eventColumns)+`
		FROM events e
		JOIN event_proposals ep ON ep.event_id = e.id
		WHERE ep.proposal_id = $1
		ORDER BY e.date`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for %d: %w", id, err)
	}
	for i := range events {
		detail.Events = append(detail.Events, events[i].toModel())
	}

	if detail.Changesets, err = s.ChangesetsFor(ctx, []int64{id}, time.Time{}); err != nil {
		return nil, err
	}

	return detail, nil
}

// ChangesetsFor returns the changesets of the given proposals created after
// since, oldest first
func (s *ProposalStore) ChangesetsFor(ctx context.Context, ids []int64, since time.Time) ([]model.Changeset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []changesetRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, proposal_id, changes, created
		FROM changesets
		WHERE proposal_id = ANY($1) AND created > $2
		ORDER BY created, id`, pq.Array(ids), since)
	if err != nil {
		return nil, fmt.Errorf("failed to get changesets: %w", err)
	}

	changesets := make([]model.Changeset, 0, len(rows))
	for i := range rows {
		cs, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		changesets = append(changesets, cs)
	}
	return changesets, nil
}

// DocumentsFor returns documents of the given proposals created in (since, until]
func (s *ProposalStore) DocumentsFor(ctx context.Context, ids []int64, since time.Time, until *time.Time) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	b := &builder{}
	b.where("proposal_id = ANY(" + b.arg(pq.Array(ids)) + ")")
	b.where("created > " + b.arg(since))
	if until != nil {
		b.where("created <= " + b.arg(*until))
	}

	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+documentColumns+` FROM documents`+b.clause()+` ORDER BY created, id`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	docs := make([]model.Document, 0, len(rows))
	for i := range rows {
		docs = append(docs, rows[i].toModel())
	}
	return docs, nil
}

// ImagesFor returns images of the given proposals created in (since, until]
func (s *ProposalStore) ImagesFor(ctx context.Context, ids []int64, since time.Time, until *time.Time) ([]model.Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	b := &builder{}
	b.where("proposal_id = ANY(" + b.arg(pq.Array(ids)) + ")")
	b.where("created > " + b.arg(since))
	if until != nil {
		b.where("created <= " + b.arg(*until))
	}

	var rows []imageRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+imageColumns+` FROM images`+b.clause()+` ORDER BY priority, created, id`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get images: %w", err)
	}

	images := make([]model.Image, 0, len(rows))
	for i := range rows {
		images = append(images, rows[i].toModel())
	}
	return images, nil
}

// AddImage inserts an image, or refreshes the cached copy of one with the
// same URL
func (s *ProposalStore) AddImage(ctx context.Context, img *model.Image) error {
	if img.Created.IsZero() {
		img.Created = time.Now()
	}
	query := `
		INSERT INTO images (proposal_id, document_id, url, image_path, thumbnail_path,
		                    width, height, skip_cache, priority, source, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (url) DO UPDATE SET
			image_path = EXCLUDED.image_path,
			thumbnail_path = EXCLUDED.thumbnail_path,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			priority = EXCLUDED.priority
		RETURNING id, created
	`

	err := s.db.QueryRowxContext(ctx, query,
		img.ProposalID,
		img.DocumentID,
		img.URL,
		img.ImagePath,
		img.ThumbnailPath,
		img.Width,
		img.Height,
		img.SkipCache,
		img.Priority,
		img.Source,
		img.Created,
	).Scan(&img.ID, &img.Created)
	if err != nil {
		return fmt.Errorf("failed to add image %s: %w", img.URL, err)
	}
	return nil
}

// DeleteDocument removes a document and the images extracted from it,
// releasing their cached files first
func (s *ProposalStore) DeleteDocument(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var doc documentRow
	err = tx.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get document %d: %w", id, err)
	}

	var images []imageRow
	err = tx.SelectContext(ctx, &images, `SELECT `+imageColumns+` FROM images WHERE document_id = $1 FOR UPDATE`, id)
	if err != nil {
		return fmt.Errorf("failed to get images for document %d: %w", id, err)
	}

	d := doc.toModel()
	paths := d.BlobPaths()
	for i := range images {
		img := images[i].toModel()
		paths = append(paths, img.BlobPaths()...)
	}
	if err := s.blobs.Release(ctx, paths...); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete images for document %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document deletion: %w", err)
	}
	return nil
}

// DeleteImage removes an image, releasing its cached files first
func (s *ProposalStore) DeleteImage(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row imageRow
	err = tx.GetContext(ctx, &row, `SELECT `+imageColumns+` FROM images WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return model.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get image %d: %w", id, err)
	}

	img := row.toModel()
	if err := s.blobs.Release(ctx, img.BlobPaths()...); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete image %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit image deletion: %w", err)
	}
	return nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
