package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	p := GormPersist{db: db}
	return &p, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(&types.Room{}, &types.Thread{}, &types.Blog{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (p *GormPersist) StoreRoom(room types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&room).Error
}

func (p *GormPersist) GetRoom(room *types.Room) error {
	err := p.db.First(room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) DeleteRoom(room *types.Room) error {
	return p.db.Delete(room).Error
}

func (p *GormPersist) AppendMessage(roomName string, msg types.Message) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		thread := types.Thread{RoomName: roomName}
		err := tx.First(&thread).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			thread.Messages = types.MessageList{msg}
			thread.Timestamp = time.Now()
			return tx.Create(&thread).Error
		}
		if err != nil {
			return err
		}
		thread.Messages = append(thread.Messages, msg)
		return tx.Model(&thread).Update("messages", thread.Messages).Error
	})
}

func (p *GormPersist) GetThread(thread *types.Thread) error {
	err := p.db.First(thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) MarkMessageDeleted(roomName, messageId string) (bool, error) {
	found := false
	err := p.db.Transaction(func(tx *gorm.DB) error {
		thread := types.Thread{RoomName: roomName}
		err := tx.First(&thread).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		for i := range thread.Messages {
			if thread.Messages[i].Id == messageId {
				thread.Messages[i].IsDeleted = true
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		return tx.Model(&thread).Update("messages", thread.Messages).Error
	})
	return found, err
}

func (p *GormPersist) StoreBlog(blog types.Blog) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&blog).Error
}

func (p *GormPersist) GetBlog(blog *types.Blog) error {
	err := p.db.First(blog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) GetBlogs() ([]*types.Blog, error) {
	blogs := make([]*types.Blog, 0)
	err := p.db.Find(&blogs).Error
	return blogs, err
}

func (p *GormPersist) UpdateBlogFields(id string, fields map[string]interface{}) error {
	res := p.db.Model(&types.Blog{Id: id}).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormPersist) Close() error {
	return nil
}
