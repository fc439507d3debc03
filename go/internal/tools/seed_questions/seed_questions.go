package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oyunlab/quizgrid/go/internal/dbconfig"
)

// Expected CSV columns:
//   category,prompt,option1,option2,option3,option4,correct,difficulty
// correct is 1-based in the files the content team maintains.
const expectedColumns = 8

func main() {
	ctx := context.Background()

	path := "go/internal/assets/questions.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = expectedColumns

	// Skip header row.
	if _, err := reader.Read(); err != nil {
		fmt.Fprintf(os.Stderr, "read header: %v\n", err)
		os.Exit(1)
	}

	total, inserted, skipped, errs := 0, 0, 0, 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs++
			continue
		}
		total++

		correct, err := strconv.Atoi(record[6])
		if err != nil || correct < 1 || correct > 4 {
			fmt.Fprintf(os.Stderr, "row %d: bad correct index %q\n", total, record[6])
			errs++
			continue
		}

		options, err := json.Marshal(record[2:6])
		if err != nil {
			errs++
			continue
		}

		tag, err := pool.Exec(ctx, `
            INSERT INTO question_bank (
              id, category, difficulty, prompt, options, correct_index
            ) VALUES ($1,$2,$3,$4,$5,$6)
            ON CONFLICT (category, prompt) DO NOTHING
        `, uuid.New(), record[0], record[7], record[1], options, correct-1)
		if err != nil {
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	fmt.Printf(
		"Questions seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
}
