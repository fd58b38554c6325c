package sigchan

// Chan 是一个非阻塞的信号 channel
// 用于通知事件发生（停止、清仓、重扫），但不传递数据
type Chan struct {
	c chan struct{}
}

// New 创建新的信号 channel
func New(bufferSize int) *Chan {
	return &Chan{
		c: make(chan struct{}, bufferSize),
	}
}

// Emit 发送信号（非阻塞）
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
		// 如果 channel 已满，忽略（非阻塞）
	}
}

// C 返回内部的 channel（用于 select）
func (c *Chan) C() <-chan struct{} {
	return c.c
}

// Pending 非阻塞探测：有信号则消费一个并返回 true
func (c *Chan) Pending() bool {
	select {
	case <-c.c:
		return true
	default:
		return false
	}
}

// Drain 清空所有积压的信号
func (c *Chan) Drain() {
	for {
		select {
		case <-c.c:
		default:
			return
		}
	}
}
