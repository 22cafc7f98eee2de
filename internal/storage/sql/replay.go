package sqlstorage

import (
	"errors"
	"fmt"

	"github.com/arscene/statesync/internal/model"
	"github.com/arscene/statesync/internal/storage"
	"github.com/arscene/statesync/pkg/core"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrSessionNotFound is returned by Replay for unknown session uuids.
var ErrSessionNotFound = errors.New("session not found")

const replayBatchSize = 2000

// Replay loads a stored session and feeds it into dst, from StartSession to
// EndSession. Rows of each table are replayed in insertion order.
func Replay(db *gorm.DB, sessionUUID string, dst storage.Backend) (*core.Session, error) {
	var row model.Session
	err := db.Where("uuid = ?", sessionUUID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting session: %w", err)
	}

	id, err := uuid.Parse(row.UUID)
	if err != nil {
		return nil, fmt.Errorf("session %d has an invalid uuid: %w", row.ID, err)
	}
	session := &core.Session{
		ID:              id,
		Name:            row.Name,
		Tag:             row.Tag,
		WorldCenterMode: core.WorldCenterMode(row.WorldCenterMode),
		StartTime:       row.StartTime,
	}
	if row.EndTime.Valid {
		session.EndTime = row.EndTime.Time
	}
	if err := dst.StartSession(session); err != nil {
		return nil, err
	}

	var trackables []model.Trackable
	if err := db.Where("session_id = ?", row.ID).Order("trackable_id").Find(&trackables).Error; err != nil {
		return nil, fmt.Errorf("error getting trackables: %w", err)
	}
	for _, t := range trackables {
		err := dst.AddTrackable(core.Trackable{ID: t.TrackableID, Name: t.Name, Kind: core.Kind(t.Kind), DataSet: t.DataSet})
		if err != nil {
			return nil, err
		}
	}

	err = replayTable(db, row.ID, func(p *model.PoseSample) error {
		return dst.RecordPose(poseUpdate(p))
	})
	if err != nil {
		return nil, fmt.Errorf("error replaying pose samples: %w", err)
	}

	err = replayTable(db, row.ID, func(s *model.StatusChange) error {
		prev, err := core.ParseStatus(s.Previous)
		if err != nil {
			return err
		}
		cur, err := core.ParseStatus(s.Current)
		if err != nil {
			return err
		}
		return dst.RecordStatusChange(&core.StatusChange{Frame: s.CaptureFrame, ID: s.TrackableID, Previous: prev, Current: cur})
	})
	if err != nil {
		return nil, fmt.Errorf("error replaying status changes: %w", err)
	}

	err = replayTable(db, row.ID, func(b *model.ButtonEvent) error {
		return dst.RecordButtonEvent(&core.ButtonEvent{
			Frame: b.CaptureFrame, ButtonID: b.ButtonID, Name: b.Name,
			OwnerID: b.OwnerID, Pressed: b.Pressed, Synthetic: b.Synthetic,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error replaying button events: %w", err)
	}

	err = replayTable(db, row.ID, func(a *model.AnchorChange) error {
		return dst.RecordAnchorChange(&core.AnchorChange{Frame: a.CaptureFrame, Previous: a.Previous, Current: a.Current})
	})
	if err != nil {
		return nil, fmt.Errorf("error replaying anchor changes: %w", err)
	}

	if err := dst.EndSession(); err != nil {
		return nil, err
	}
	return session, nil
}

// replayTable walks every row of M belonging to a session in primary key order.
func replayTable[M any](db *gorm.DB, sessionID uint, fn func(*M) error) error {
	var batch []M
	return db.Where("session_id = ?", sessionID).FindInBatches(&batch, replayBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		return nil
	}).Error
}

func poseUpdate(p *model.PoseSample) *core.PoseUpdate {
	u := &core.PoseUpdate{
		Frame: p.CaptureFrame,
		ID:    p.TrackableID,
		World: core.Pose{
			Position: core.Vec3{Z: p.Elevation},
			Orientation: core.Quat{
				W: p.Orientation.W, X: p.Orientation.X, Y: p.Orientation.Y, Z: p.Orientation.Z,
			},
		},
	}
	if c, ok := p.Position.Coordinates(); ok {
		u.World.Position.X, u.World.Position.Y = c.X, c.Y
	}
	return u
}
