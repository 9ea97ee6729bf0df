package mysql

const getCacheEntrySQL = `
SELECT payload, last_fetched
FROM property_cache
WHERE address = ?
`

// One row per normalized address; a concurrent writer simply overwrites.
const upsertCacheEntrySQL = `
INSERT INTO property_cache
  (address, payload, last_fetched)
VALUES
  (?, ?, ?)
ON DUPLICATE KEY UPDATE
  payload      = VALUES(payload),
  last_fetched = VALUES(last_fetched)
`

const insertQuerySQL = `
INSERT INTO queries
  (id, address, bedrooms, bathrooms, accommodates, source, success, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  source  = VALUES(source),
  success = VALUES(success)
`

const insertQueryErrorSQL = `
INSERT INTO query_errors
  (query_id, kind, message, detail, created_at)
VALUES
  (?, ?, ?, ?, ?)
`
