package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// searchScan ranks every row passing the filter by exact cosine
// similarity. It is the correctness baseline the approximate path
// falls back to.
func (s *SQLiteStore) searchScan(ctx context.Context, query []float32, limit int, f Filters) ([]Result, error) {
	where, args := buildFilterClause(f)
	sqlQuery := `
		SELECT id, content, embedding, filepath, start_line, end_line, language, repo, branch
		FROM chunks` + where

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("vector scan: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results, err := scoreRows(rows, query)
	if err != nil {
		return nil, err
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// searchByRowIDs fetches only the candidate rowids from the
// approximate index, applies the SQL filter, and ranks the survivors
// exactly.
func (s *SQLiteStore) searchByRowIDs(ctx context.Context, query []float32, rowids []string, limit int, f Filters) ([]Result, error) {
	placeholders := make([]string, len(rowids))
	args := make([]interface{}, len(rowids))
	for i, id := range rowids {
		placeholders[i] = "?"
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed index entry id %q: %w", id, err)
		}
		args[i] = n
	}

	where, filterArgs := buildFilterClause(f)
	if where == "" {
		where = " WHERE"
	} else {
		where += " AND"
	}
	where += " rowid IN (" + strings.Join(placeholders, ",") + ")"
	args = append(filterArgs, args...)

	sqlQuery := `
		SELECT id, content, embedding, filepath, start_line, end_line, language, repo, branch
		FROM chunks` + where

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("candidate fetch: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results, err := scoreRows(rows, query)
	if err != nil {
		return nil, err
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// buildFilterClause translates Filters into a WHERE clause. Directory
// prefixes OR together; everything else ANDs.
func buildFilterClause(f Filters) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Repo != "" {
		conds = append(conds, "repo = ?")
		args = append(args, f.Repo)
	}
	if f.Branch != "" {
		conds = append(conds, "branch = ?")
		args = append(args, f.Branch)
	}
	if f.Language != "" {
		conds = append(conds, "language = ?")
		args = append(args, f.Language)
	}
	if len(f.Directories) > 0 {
		ors := make([]string, len(f.Directories))
		for i, dir := range f.Directories {
			ors[i] = "filepath LIKE ?"
			args = append(args, strings.TrimSuffix(dir, "/")+"/%")
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scoreRows scans result rows and computes exact cosine similarity
// against the query. Rows whose stored vector has the wrong dimension
// are skipped.
func scoreRows(rows *sql.Rows, query []float32) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Row
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Content, &blob, &r.Filepath,
			&r.StartLine, &r.EndLine, &r.Language, &r.Repo, &r.Branch); err != nil {
			return nil, err
		}
		r.Vector = deserializeVector(blob)
		if len(r.Vector) != len(query) {
			continue
		}
		results = append(results, Result{
			Row:   r,
			Score: cosineSimilarity(query, r.Vector),
		})
	}
	return results, rows.Err()
}

// sortResults orders by similarity descending, breaking ties by ID so
// results are stable.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Row.ID < results[j].Row.ID
	})
}

// serializeVector converts a float32 slice to a little-endian blob.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing.
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing.
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
