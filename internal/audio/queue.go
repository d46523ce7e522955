package audio

import (
	"context"
	"sync"
)

// Queue 是无界 FIFO 音频缓冲队列。
// 生产者（TTS 引擎）推入合成好的 PCM 字节块，
// 消费者（speaker）按先进先出顺序取走播放。
// 所有方法可跨 goroutine 并发调用。
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	bufs   [][]byte
	closed bool
}

// NewQueue 创建空队列。
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push 将一个缓冲追加到队尾。队列无容量上限，Push 永不阻塞。
// 队列关闭后 Push 被静默忽略。
func (q *Queue) Push(buf []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.bufs = append(q.bufs, buf)
	q.cond.Signal()
}

// Pop 取出队首缓冲，队列为空时阻塞等待。
// ctx 取消或队列关闭且已空时返回 false。
func (q *Queue) Pop(ctx context.Context) ([]byte, bool) {
	// ctx 取消时唤醒等待中的 cond
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.bufs) == 0 {
		if q.closed || ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}

	buf := q.bufs[0]
	q.bufs = q.bufs[1:]
	return buf, true
}

// TryPop 非阻塞取出队首缓冲，队列为空时返回 false。
func (q *Queue) TryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.bufs) == 0 {
		return nil, false
	}
	buf := q.bufs[0]
	q.bufs = q.bufs[1:]
	return buf, true
}

// Len 返回当前排队的缓冲数量。
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.bufs)
}

// Close 关闭队列：后续 Push 被忽略，排空后的 Pop 返回 false。
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}
