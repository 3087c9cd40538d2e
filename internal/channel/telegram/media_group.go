package telegram

import (
	"sync"
	"time"

	"github.com/go-telegram/bot/models"
)

// mediaGroupDebounce is how long to wait after the last update of an
// album before flushing it. Telegram delivers the items of one media
// group within a few hundred milliseconds.
const mediaGroupDebounce = 500 * time.Millisecond

// pendingMediaGroup accumulates the updates sharing one MediaGroupID
// until the debounce window closes.
type pendingMediaGroup struct {
	timer   *time.Timer
	chat    models.Chat
	from    *models.User
	caption string
	// captionEntities come from whichever update carried the caption.
	captionEntities []models.MessageEntity
	// photos holds the best PhotoSize per update (largest resolution).
	photos []models.PhotoSize
	// firstMessageID identifies the merged message.
	firstMessageID int
	// mentioned is set if any update in the group @-mentioned the bot.
	mentioned bool
}

// mediaGroupAggregator buffers album updates and flushes each group as
// one batch once its debounce window elapses.
type mediaGroupAggregator struct {
	mu      sync.Mutex
	groups  map[string]*pendingMediaGroup // key: MediaGroupID
	onFlush func(g *pendingMediaGroup)
}

func newMediaGroupAggregator(onFlush func(g *pendingMediaGroup)) *mediaGroupAggregator {
	return &mediaGroupAggregator{
		groups:  make(map[string]*pendingMediaGroup),
		onFlush: onFlush,
	}
}

// add consumes one photo update belonging to a media group.
func (a *mediaGroupAggregator) add(msg *models.Message, mentioned bool) {
	groupID := msg.MediaGroupID

	a.mu.Lock()
	defer a.mu.Unlock()

	pg, exists := a.groups[groupID]
	if !exists {
		pg = &pendingMediaGroup{
			chat:           msg.Chat,
			from:           msg.From,
			firstMessageID: msg.ID,
		}
		a.groups[groupID] = pg
	}

	if msg.Caption != "" && pg.caption == "" {
		pg.caption = msg.Caption
		pg.captionEntities = msg.CaptionEntities
	}
	if mentioned {
		pg.mentioned = true
	}

	// Telegram lists sizes ascending; take the largest.
	if len(msg.Photo) > 0 {
		pg.photos = append(pg.photos, msg.Photo[len(msg.Photo)-1])
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(mediaGroupDebounce, func() {
		a.flush(groupID)
	})
}

// flush removes the group from the map and hands it to onFlush.
func (a *mediaGroupAggregator) flush(groupID string) {
	a.mu.Lock()
	pg, exists := a.groups[groupID]
	delete(a.groups, groupID)
	a.mu.Unlock()

	if exists && a.onFlush != nil {
		a.onFlush(pg)
	}
}
