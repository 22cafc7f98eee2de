package database

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/arscene/statesync/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const migrateBatchSize = 1000

// MigrateBackup copies every session of src into dst with fresh ids.
// Sessions whose uuid already exists in dst are skipped. Each session is
// copied in its own transaction.
func MigrateBackup(src, dst *gorm.DB, log zerolog.Logger) (migrated int, err error) {
	var sessions []model.Session
	if err := src.Find(&sessions).Error; err != nil {
		return 0, fmt.Errorf("error getting sessions: %w", err)
	}

	for _, s := range sessions {
		var existing int64
		if err := dst.Model(&model.Session{}).Where("uuid = ?", s.UUID).Count(&existing).Error; err != nil {
			return migrated, err
		}
		if existing > 0 {
			log.Info().Str("uuid", s.UUID).Msg("Session already migrated, skipping")
			continue
		}

		err := dst.Transaction(func(tx *gorm.DB) error {
			return migrateSession(src, tx, s, log)
		})
		if err != nil {
			return migrated, fmt.Errorf("error migrating session %s: %w", s.UUID, err)
		}
		migrated++
	}
	return migrated, nil
}

func migrateSession(src, tx *gorm.DB, s model.Session, log zerolog.Logger) error {
	oldID := s.ID
	s.ID = 0
	s.Trackables = nil
	if err := tx.Omit(clause.Associations).Create(&s).Error; err != nil {
		return err
	}
	newID := s.ID

	// tables without a single primary key are small and copied in one go
	var trackables []model.Trackable
	if err := src.Where("session_id = ?", oldID).Find(&trackables).Error; err != nil {
		return err
	}
	for i := range trackables {
		trackables[i].SessionID = newID
	}
	if len(trackables) > 0 {
		if err := tx.Omit(clause.Associations).Create(&trackables).Error; err != nil {
			return err
		}
	}

	var stats []model.FrameStat
	if err := src.Where("session_id = ?", oldID).Find(&stats).Error; err != nil {
		return err
	}
	for i := range stats {
		stats[i].SessionID = newID
	}
	if len(stats) > 0 {
		if err := tx.Omit(clause.Associations).CreateInBatches(&stats, migrateBatchSize).Error; err != nil {
			return err
		}
	}

	counts := map[string]int64{"trackables": int64(len(trackables)), "frame_stats": int64(len(stats))}
	var errs []error
	var n int64
	var err error

	n, err = copyRows(src, tx, oldID, func(r *model.PoseSample) { r.ID, r.SessionID = 0, newID })
	counts["pose_samples"], errs = n, append(errs, err)
	n, err = copyRows(src, tx, oldID, func(r *model.StatusChange) { r.ID, r.SessionID = 0, newID })
	counts["status_changes"], errs = n, append(errs, err)
	n, err = copyRows(src, tx, oldID, func(r *model.ButtonEvent) { r.ID, r.SessionID = 0, newID })
	counts["button_events"], errs = n, append(errs, err)
	n, err = copyRows(src, tx, oldID, func(r *model.AnchorChange) { r.ID, r.SessionID = 0, newID })
	counts["anchor_changes"], errs = n, append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.Info().Str("uuid", s.UUID).Uint("sessionId", newID).Interface("rows", counts).Msg("Migrated session")
	return nil
}

// copyRows copies the rows of one session in primary key order. reset
// rewrites the keys of each row before insertion.
func copyRows[M any](src, dst *gorm.DB, sessionID uint, reset func(*M)) (int64, error) {
	var batch []M
	var n int64
	err := src.Where("session_id = ?", sessionID).FindInBatches(&batch, migrateBatchSize, func(_ *gorm.DB, _ int) error {
		// the batch keeps its source keys for the next page
		rows := slices.Clone(batch)
		for i := range rows {
			reset(&rows[i])
		}
		if err := dst.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return err
		}
		n += int64(len(rows))
		return nil
	}).Error
	return n, err
}

// MigrateBackups migrates every backup file into dst and renames each
// migrated file to <path>.migrated. It stops at the first failing file.
func MigrateBackups(dst *gorm.DB, paths []string, log zerolog.Logger) ([]string, error) {
	var done []string
	for _, path := range paths {
		src, err := OpenSqlite(path, log)
		if err != nil {
			return done, fmt.Errorf("error opening backup %s: %w", path, err)
		}
		n, err := MigrateBackup(src, dst, log)

		if sqlDB, cerr := src.DB(); cerr == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				log.Error().Err(cerr).Str("path", path).Msg("Error closing sqlite connection")
			}
		}
		if err != nil {
			return done, fmt.Errorf("error migrating backup %s: %w", path, err)
		}

		if err := os.Rename(path, path+".migrated"); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Error renaming sqlite file")
		}
		log.Info().Str("path", path).Int("sessions", n).Msg("Backup migrated")
		done = append(done, path)
	}
	return done, nil
}
