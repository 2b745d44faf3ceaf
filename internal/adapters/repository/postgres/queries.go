package postgres

// schema is applied on open; statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS operators (
	id               BIGSERIAL PRIMARY KEY,
	name             TEXT NOT NULL,
	active           BOOLEAN NOT NULL DEFAULT TRUE,
	max_active_leads INTEGER NOT NULL DEFAULT 10 CHECK (max_active_leads >= 0)
);

CREATE TABLE IF NOT EXISTS sources (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS source_operators (
	id          BIGSERIAL PRIMARY KEY,
	source_id   BIGINT NOT NULL REFERENCES sources(id),
	operator_id BIGINT NOT NULL REFERENCES operators(id),
	weight      INTEGER NOT NULL DEFAULT 1 CHECK (weight >= 0),
	UNIQUE (source_id, operator_id)
);

CREATE TABLE IF NOT EXISTS leads (
	id          BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS contacts (
	id          BIGSERIAL PRIMARY KEY,
	lead_id     BIGINT NOT NULL REFERENCES leads(id),
	source_id   BIGINT NOT NULL REFERENCES sources(id),
	operator_id BIGINT REFERENCES operators(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_contacts_operator_active
	ON contacts (operator_id) WHERE active;
`

const (
	qFindLead   = `SELECT id, external_id FROM leads WHERE external_id = $1`
	qInsertLead = `INSERT INTO leads (external_id) VALUES ($1) RETURNING id`

	qInsertOperator = `INSERT INTO operators (name, active, max_active_leads) VALUES ($1, $2, $3) RETURNING id`
	qUpdateOperator = `UPDATE operators
		SET active = COALESCE($2, active), max_active_leads = COALESCE($3, max_active_leads)
		WHERE id = $1
		RETURNING id, name, active, max_active_leads`
	qGetOperator   = `SELECT id, name, active, max_active_leads FROM operators WHERE id = $1`
	qListOperators = `SELECT id, name, active, max_active_leads FROM operators ORDER BY id`

	qInsertSource = `INSERT INTO sources (name) VALUES ($1) RETURNING id`
	qFindSource   = `SELECT id, name FROM sources WHERE id = $1`
	qListSources  = `SELECT id, name FROM sources ORDER BY id`

	qUpsertEdge = `INSERT INTO source_operators (source_id, operator_id, weight)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id, operator_id) DO UPDATE SET weight = EXCLUDED.weight
		RETURNING id`

	qEdgesWithOperator = `SELECT o.id, o.name, o.active, o.max_active_leads, so.weight
		FROM source_operators so
		JOIN operators o ON o.id = so.operator_id
		WHERE so.source_id = $1 AND o.active
		ORDER BY o.id`

	qCountActive = `SELECT count(*) FROM contacts WHERE operator_id = $1 AND active`

	qLockOperator = `SELECT max_active_leads FROM operators WHERE id = $1 FOR UPDATE`

	qInsertContact = `INSERT INTO contacts (lead_id, source_id, operator_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	qCloseContact = `UPDATE contacts SET active = FALSE WHERE id = $1
		RETURNING id, lead_id, source_id, operator_id, created_at, active`

	qListContacts = `SELECT id, lead_id, source_id, operator_id, created_at, active
		FROM contacts ORDER BY id`

	qContactStats = `SELECT count(*),
		count(*) FILTER (WHERE operator_id IS NOT NULL),
		count(*) FILTER (WHERE operator_id IS NULL)
		FROM contacts`
)
