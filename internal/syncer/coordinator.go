package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"codeverse/internal/entity"

	"github.com/sirupsen/logrus"
)

// LocalStore 是同步需要的本地持久化接口，由 model.Repository 满足。
type LocalStore interface {
	ListPoemRecordsByUser(ctx context.Context, userID uint) ([]entity.DbPoemRecord, error)
	UpsertPoemRecord(ctx context.Context, record *entity.DbPoemRecord) error
	PurgePoemRecord(ctx context.Context, id string) error
	SetPoemFavorite(ctx context.Context, id string, favorite bool, at time.Time) error
	ListTombstonesByUser(ctx context.Context, userID uint) ([]entity.DbTombstone, error)
	DeleteTombstone(ctx context.Context, recordID string) error
}

// Report 汇总一次同步的结果。Skipped 为 true 时其余计数必为零。
type Report struct {
	Pulled            int    `json:"pulled"`
	Pushed            int    `json:"pushed"`
	FavoritesMerged   int    `json:"favorites_merged"`
	TombstonesPushed  int    `json:"tombstones_pushed"`
	TombstonesApplied int    `json:"tombstones_applied"`
	Skipped           bool   `json:"skipped"`
	SkipReason        string `json:"skip_reason,omitempty"`
}

func skipped(reason string) *Report {
	return &Report{Skipped: true, SkipReason: reason}
}

// Coordinator 负责本地记录与远端文档存储之间的双向调和。
type Coordinator struct {
	local  LocalStore
	remote RemoteStore
	probe  ConnectivityProbe
}

// NewCoordinator 创建同步协调器；remote 为 nil 表示同步未启用。
func NewCoordinator(local LocalStore, remote RemoteStore, probe ConnectivityProbe) *Coordinator {
	return &Coordinator{
		local:  local,
		remote: remote,
		probe:  probe,
	}
}

// tombstoneDoc 墓碑在远端的 JSON 形式。
type tombstoneDoc struct {
	RecordID  string   `json:"record_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// Reconcile 执行一次完整的双向同步：
//
//  1. 推送本地墓碑并删除对应远端记录
//  2. 应用远端墓碑，清除本地已在别处删除的记录
//  3. 拉取本地缺失的远端记录
//  4. 推送远端缺失的本地记录
//  5. 两边都有的记录按 FavoriteUpdatedAt 较新者合并收藏状态
//
// guest 账户、未配置远端或远端不可达时整体跳过，不做任何改动。
// 单个对象的失败记日志后继续，列举失败则整个同步失败。
func (c *Coordinator) Reconcile(ctx context.Context, user *entity.DbUser) (*Report, error) {
	if user == nil {
		return nil, fmt.Errorf("user is nil")
	}
	if user.IsGuest() {
		return skipped("guest accounts do not sync"), nil
	}
	if !user.IsActive {
		return skipped("account is disabled"), nil
	}
	if c.remote == nil {
		return skipped("sync is not configured"), nil
	}
	if c.probe != nil && !c.probe.Reachable(ctx) {
		logrus.WithField("user_id", user.ID).Info("sync skipped, remote unreachable")
		return skipped("remote store is unreachable"), nil
	}

	report := &Report{}
	log := logrus.WithField("user_id", user.ID)

	localTombstones, err := c.local.ListTombstonesByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list local tombstones: %w", err)
	}
	for _, tomb := range localTombstones {
		if err := c.pushTombstone(ctx, user.ID, tomb); err != nil {
			log.WithError(err).WithField("record_id", tomb.RecordID).Warn("push tombstone failed")
			continue
		}
		report.TombstonesPushed++
	}

	localRecords, err := c.local.ListPoemRecordsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list local records: %w", err)
	}
	localByID := make(map[string]*entity.DbPoemRecord, len(localRecords))
	for i := range localRecords {
		localByID[localRecords[i].ID] = &localRecords[i]
	}

	// 远端墓碑优先于记录：已删除的不再拉取，本地副本清除
	deadIDs := make(map[string]struct{})
	remoteTombKeys, err := c.remote.ListKeys(ctx, tombstonePrefix(user.ID))
	if err != nil {
		return nil, fmt.Errorf("list remote tombstones: %w", err)
	}
	for _, key := range remoteTombKeys {
		recordID := recordIDFromKey(key)
		deadIDs[recordID] = struct{}{}
		if _, exists := localByID[recordID]; !exists {
			continue
		}
		if err := c.local.PurgePoemRecord(ctx, recordID); err != nil {
			log.WithError(err).WithField("record_id", recordID).Warn("apply remote tombstone failed")
			continue
		}
		delete(localByID, recordID)
		report.TombstonesApplied++
	}

	remoteKeys, err := c.remote.ListKeys(ctx, recordPrefix(user.ID))
	if err != nil {
		return nil, fmt.Errorf("list remote records: %w", err)
	}
	remoteIDs := make(map[string]struct{}, len(remoteKeys))
	for _, key := range remoteKeys {
		remoteIDs[recordIDFromKey(key)] = struct{}{}
	}

	// 拉取本地缺失的远端记录
	for recordID := range remoteIDs {
		if _, dead := deadIDs[recordID]; dead {
			continue
		}
		local, exists := localByID[recordID]
		if exists {
			if c.mergeFavorite(ctx, user.ID, local) {
				report.FavoritesMerged++
			}
			continue
		}
		if err := c.pullRecord(ctx, user.ID, recordID); err != nil {
			log.WithError(err).WithField("record_id", recordID).Warn("pull record failed")
			continue
		}
		report.Pulled++
	}

	// 推送远端缺失的本地记录
	for recordID, record := range localByID {
		if _, dead := deadIDs[recordID]; dead {
			continue
		}
		if _, exists := remoteIDs[recordID]; exists {
			continue
		}
		if err := c.pushRecord(ctx, user.ID, record); err != nil {
			log.WithError(err).WithField("record_id", recordID).Warn("push record failed")
			continue
		}
		report.Pushed++
	}

	log.WithFields(logrus.Fields{
		"pulled":             report.Pulled,
		"pushed":             report.Pushed,
		"favorites_merged":   report.FavoritesMerged,
		"tombstones_pushed":  report.TombstonesPushed,
		"tombstones_applied": report.TombstonesApplied,
	}).Info("sync reconcile finished")

	return report, nil
}

// pushTombstone 将本地墓碑搬到远端，成功后删除远端记录与本地墓碑行。
func (c *Coordinator) pushTombstone(ctx context.Context, userID uint, tomb entity.DbTombstone) error {
	data, err := json.Marshal(tombstoneDoc{
		RecordID:  tomb.RecordID,
		DeletedAt: tomb.DeletedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal tombstone: %w", err)
	}
	if err := c.remote.PutObject(ctx, tombstoneKey(userID, tomb.RecordID), data); err != nil {
		return err
	}
	if err := c.remote.DeleteObject(ctx, recordKey(userID, tomb.RecordID)); err != nil {
		return err
	}
	return c.local.DeleteTombstone(ctx, tomb.RecordID)
}

func (c *Coordinator) pullRecord(ctx context.Context, userID uint, recordID string) error {
	data, err := c.remote.GetObject(ctx, recordKey(userID, recordID))
	if err != nil {
		return err
	}
	var doc entity.PoemDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	return c.local.UpsertPoemRecord(ctx, doc.ToRecord(userID))
}

func (c *Coordinator) pushRecord(ctx context.Context, userID uint, record *entity.DbPoemRecord) error {
	data, err := json.Marshal(entity.DocumentFromRecord(record))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return c.remote.PutObject(ctx, recordKey(userID, record.ID), data)
}

// mergeFavorite 对两边都存在的记录合并收藏状态，较新的一侧获胜。
// 时间戳相等时不动，返回是否发生了合并。
func (c *Coordinator) mergeFavorite(ctx context.Context, userID uint, local *entity.DbPoemRecord) bool {
	data, err := c.remote.GetObject(ctx, recordKey(userID, local.ID))
	if err != nil {
		logrus.WithError(err).WithField("record_id", local.ID).Warn("fetch remote record failed")
		return false
	}
	var doc entity.PoemDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		logrus.WithError(err).WithField("record_id", local.ID).Warn("unmarshal remote record failed")
		return false
	}

	switch {
	case doc.FavoriteUpdatedAt.After(local.FavoriteUpdatedAt):
		// 远端严格较新，本地跟随
		if doc.Favorite == local.Favorite {
			return false
		}
		if err := c.local.SetPoemFavorite(ctx, local.ID, doc.Favorite, doc.FavoriteUpdatedAt); err != nil {
			logrus.WithError(err).WithField("record_id", local.ID).Warn("apply remote favorite failed")
			return false
		}
		return true
	case local.FavoriteUpdatedAt.After(doc.FavoriteUpdatedAt):
		// 本地严格较新，覆盖远端文档
		if doc.Favorite == local.Favorite {
			return false
		}
		if err := c.pushRecord(ctx, userID, local); err != nil {
			logrus.WithError(err).WithField("record_id", local.ID).Warn("push local favorite failed")
			return false
		}
		return true
	default:
		return false
	}
}
