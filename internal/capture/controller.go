package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"magpie/internal/config"
	"magpie/internal/extract"
	"magpie/internal/model"
	"magpie/internal/store"
)

// State 控制器状态
type State string

const (
	StateDisabled  State = "disabled"
	StateSearching State = "searching"
	StateObserving State = "observing"
)

// Controller 捕获控制器
// 拥有观察生命周期：定位容器 -> 监听变更 -> 节流 -> 提取 -> 会话内去重 -> 持久化
// 所有提取在 Run 的单个 goroutine 里串行执行，变更通知只是触发信号
type Controller struct {
	cfg       config.CaptureConfig
	extractor *extract.Extractor
	convStore *store.ConversationStore

	// 触发信号，容量 1：节流窗口内的后续通知被吸收
	kick chan struct{}

	mu       sync.Mutex
	enabled  bool
	state    State
	snapshot *model.Snapshot

	// 以下字段只在 Run goroutine 内访问
	pending    []model.Message
	pendingID  string
	pendingURL string
	pendingTit string

	passCount  int64
	savedCount int64
	statsMu    sync.Mutex
}

// New 创建控制器，依赖显式注入
func New(cfg config.CaptureConfig, extractor *extract.Extractor, convStore *store.ConversationStore) *Controller {
	c := &Controller{
		cfg:       cfg,
		extractor: extractor,
		convStore: convStore,
		kick:      make(chan struct{}, 1),
		state:     StateDisabled,
	}
	if c.cfg.ThrottleDelay <= 0 {
		c.cfg.ThrottleDelay = time.Second
	}
	if c.cfg.SearchRetry <= 0 {
		c.cfg.SearchRetry = 2 * time.Second
	}
	return c
}

// Run 启动控制器主循环，阻塞直到 ctx 取消
// 退出前把未保存的批次冲刷到存储
func (c *Controller) Run(ctx context.Context) {
	if c.cfg.Enabled {
		c.Toggle(true)
	}

	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background())
			return

		case <-c.kick:
			if !c.isEnabled() {
				// 禁用路径：取消后续调度，但已提取的消息先冲刷
				c.flush(ctx)
				continue
			}

			// 节流窗口：首个通知调度一次提取，窗口内后续通知被吸收
			timer := time.NewTimer(c.cfg.ThrottleDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				c.flush(context.Background())
				return
			case <-timer.C:
			}

			c.runPass(ctx)
		}
	}
}

// Notify 变更通知：载荷是不透明触发器，总是基于最新快照重新提取
func (c *Controller) Notify(snapshot model.Snapshot) {
	c.mu.Lock()
	c.snapshot = &snapshot
	c.mu.Unlock()

	c.signal()
}

// Touch 不带快照的变更通知，基于已有的最新快照调度一次提取
func (c *Controller) Touch() {
	c.signal()
}

// Toggle 切换捕获开关
// 开启时重置会话状态并立即触发一次完整提取；
// 关闭时停止监听，未保存的消息在循环内冲刷后停下
func (c *Controller) Toggle(enabled bool) {
	c.mu.Lock()
	if c.enabled == enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled
	if enabled {
		c.state = StateSearching
		c.extractor.Reset()
	} else {
		c.state = StateDisabled
	}
	c.mu.Unlock()

	c.signal()

	log.Info().Bool("enabled", enabled).Msg("capture toggled")
}

// Status 当前状态快照
func (c *Controller) Status() model.CaptureStatusResponse {
	c.mu.Lock()
	state := c.state
	enabled := c.enabled
	c.mu.Unlock()

	c.statsMu.Lock()
	passes := c.passCount
	saved := c.savedCount
	pending := len(c.pending)
	c.statsMu.Unlock()

	return model.CaptureStatusResponse{
		State:        string(state),
		Enabled:      enabled,
		PendingCount: pending,
		PassCount:    passes,
		SavedCount:   saved,
	}
}

func (c *Controller) signal() {
	select {
	case c.kick <- struct{}{}:
	default:
		// 已有调度中的触发，吸收
	}
}

func (c *Controller) isEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) latestSnapshot() *model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// runPass 一次完整的提取-合并流程
func (c *Controller) runPass(ctx context.Context) {
	snap := c.latestSnapshot()
	if snap == nil {
		c.setState(StateSearching)
		c.scheduleRetry()
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		// 坏快照只记录，等下一个
		log.Warn().Err(err).Str("url", snap.URL).Msg("failed to parse snapshot")
		return
	}

	if _, ok := c.extractor.FindContainer(doc); !ok {
		log.Debug().Err(extract.ErrContainerNotFound).Str("url", snap.URL).Msg("retrying after delay")
		c.setState(StateSearching)
		c.scheduleRetry()
		return
	}
	c.setState(StateObserving)

	messages := c.extractor.Extract(doc)

	c.statsMu.Lock()
	c.passCount++
	if len(messages) > 0 {
		c.pending = append(c.pending, messages...)
		c.pendingID = model.NewConversationID(snap.PageID, snap.URL, snap.CapturedAt)
		c.pendingURL = snap.URL
		c.pendingTit = snap.Title
	}
	hasPending := len(c.pending) > 0
	c.statsMu.Unlock()

	if hasPending {
		c.flush(ctx)
	}
}

// flush 把待写批次保存到会话存储
// 至少一次语义：只有保存成功后才清空批次，失败保留等下次重试
func (c *Controller) flush(ctx context.Context) {
	c.statsMu.Lock()
	if len(c.pending) == 0 {
		c.statsMu.Unlock()
		return
	}
	batch := make([]model.Message, len(c.pending))
	copy(batch, c.pending)
	convID, url, title := c.pendingID, c.pendingURL, c.pendingTit
	c.statsMu.Unlock()

	if err := c.convStore.Merge(ctx, convID, url, title, batch); err != nil {
		log.Warn().Err(err).
			Str("conversation_id", convID).
			Int("pending", len(batch)).
			Msg("save failed, keeping batch for retry")
		return
	}

	c.statsMu.Lock()
	// 保存期间可能又有新消息进来，只清掉已确认的前缀
	c.pending = c.pending[len(batch):]
	c.savedCount += int64(len(batch))
	c.statsMu.Unlock()

	log.Info().
		Str("conversation_id", convID).
		Int("messages", len(batch)).
		Msg("captured messages saved")
}

// scheduleRetry 搜索状态下的定时重试
func (c *Controller) scheduleRetry() {
	time.AfterFunc(c.cfg.SearchRetry, func() {
		if c.isEnabled() {
			c.signal()
		}
	})
}
