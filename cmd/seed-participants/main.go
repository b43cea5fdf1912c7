package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/database"
	"github.com/stemsi/exstem-cbt/internal/logger"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
	"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
	"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
	"Bagas Saputra", "Citra Kirana", "Dimas Anggara", "Elisa Novita", "Fikri Maulana",
	"Gali Rakasiwi", "Hani Hanifah", "Iqbal Ramadhan", "Jasmine Azzahra", "Kevin Sanjaya",
	"Larasati Dewi", "Miko Pambudi", "Nia Ramadhani", "Oscar Lawalata", "Puput Melati",
	"Reza Rahadian", "Sari Nila", "Tigor Siahaan", "Utari Maharani", "Vicky Prasetyo",
}

// seed-participants creates load-test participants and registers them for a schedule.
func main() {
	scheduleID := flag.Int64("schedule", 0, "Exam schedule id to register participants for")
	count := flag.Int("count", len(names), "Number of participants to create")
	flag.Parse()

	cfg := config.Load()
	log := logger.Component(logger.Setup(cfg.LogLevel, cfg.LogFormat), "seed_participants")

	if *scheduleID <= 0 || *count <= 0 {
		log.Fatal().Int64("schedule", *scheduleID).Int("count", *count).Msg("-schedule and -count must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	var scheduleName string
	err = pool.QueryRow(ctx, `SELECT name FROM exam_schedules WHERE id = $1`, *scheduleID).Scan(&scheduleName)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Fatal().Int64("schedule", *scheduleID).Msg("Schedule not found")
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to look up schedule")
	}

	fmt.Printf("=== Seeding %d participants for %q ===\n", *count, scheduleName)

	var created int64
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		ids := make([]int64, 0, *count)
		for i := 0; i < *count; i++ {
			name := names[i%len(names)]
			if i >= len(names) {
				name = fmt.Sprintf("%s %d", name, i/len(names)+1)
			}

			var id int64
			if err := tx.QueryRow(ctx, `INSERT INTO participants (name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
				return fmt.Errorf("insert participant %q: %w", name, err)
			}
			ids = append(ids, id)
		}

		rows := make([][]any, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, []any{*scheduleID, id})
		}
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"schedule_participants"},
			[]string{"schedule_id", "participant_id"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("register participants: %w", err)
		}
		created = n
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}

	log.Info().Int64("schedule", *scheduleID).Int64("registered", created).Msg("Seeding complete")
}
