package stranger

// arm starts the poller for gen unless the session has already ended or
// been superseded.
func (c *Client) arm(gen uint64, server, id string) {
	c.mu.Lock()
	if c.generation != gen || !c.session.Active() {
		c.mu.Unlock()
		return
	}
	done := make(chan struct{})
	c.pollers[gen] = done
	c.mu.Unlock()

	go c.poll(gen, server, id, done)
}

// poll keeps exactly one fetch outstanding for the session. After each
// fetch, successful or not, it goes again only while gen is still the
// current generation and the session is still active. Fetch failures are
// retried without emitting a signal.
func (c *Client) poll(gen uint64, server, id string, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		delete(c.pollers, gen)
		c.mu.Unlock()
		close(done)
	}()

	for {
		events, err := c.transport.FetchEvents(c.ctx, server, id)
		c.metrics.PollCompleted(err)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Debug("Event fetch failed, retrying", "id", id, "error", err)
		} else {
			c.dispatch(gen, events)
		}

		if !c.current(gen) {
			c.logger.Debug("Poller stopped", "id", id)
			return
		}
		if err != nil && c.limiter != nil {
			if err := c.limiter.Wait(c.ctx); err != nil {
				return
			}
			if !c.current(gen) {
				return
			}
		}
	}
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen && c.session.Active()
}
