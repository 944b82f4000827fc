package devstore

import (
	"bufio"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/meshbus-go/internal/resp"
)

type commandHandler struct {
	srv *Server
}

func wrongArgs(w *bufio.Writer, cmd string) {
	_ = resp.WriteError(w, "ERR wrong number of arguments for '"+strings.ToLower(cmd)+"' command")
}

func notInteger(w *bufio.Writer) {
	_ = resp.WriteError(w, "ERR value is not an integer or out of range")
}

// handle executes one command and reports whether the connection should be
// closed afterwards.
func (h *commandHandler) handle(c *Conn, w *bufio.Writer, args [][]byte) bool {
	cmd := resp.NormalizeCommandName(args[0])

	switch cmd {
	case "QUIT":
		_ = resp.WriteSimpleString(w, "OK")
		return true
	case "AUTH":
		h.handleAuth(c, w, args)
		return false
	}

	if !c.authenticated {
		_ = resp.WriteError(w, "NOAUTH Authentication required.")
		return false
	}

	if c.limiter != nil && !c.limiter.Allow() {
		_ = resp.WriteError(w, "ERR rate limit exceeded")
		return false
	}

	if len(c.subs) > 0 {
		switch cmd {
		case "SUBSCRIBE", "UNSUBSCRIBE":
		case "PING":
			_ = resp.WriteArrayHeader(w, 2)
			_ = resp.WriteBulkString(w, "pong")
			_ = resp.WriteBulkString(w, "")
			return false
		default:
			_ = resp.WriteError(w, "ERR Can't execute '"+strings.ToLower(cmd)+"': only SUBSCRIBE / UNSUBSCRIBE / PING / QUIT are allowed in this context")
			return false
		}
	}

	switch cmd {
	case "PING":
		h.handlePing(w, args)
	case "ECHO":
		h.handleEcho(w, args)
	case "SELECT":
		h.handleSelect(c, w, args)
	case "GET":
		h.handleGet(c, w, args)
	case "SET":
		h.handleSet(c, w, args)
	case "SETEX":
		h.handleSetEx(c, w, args)
	case "DEL":
		h.handleDel(c, w, args)
	case "EXISTS":
		h.handleExists(c, w, args)
	case "EXPIRE":
		h.handleExpire(c, w, args)
	case "PERSIST":
		h.handlePersist(c, w, args)
	case "TTL":
		h.handleTTL(c, w, args, time.Second)
	case "PTTL":
		h.handleTTL(c, w, args, time.Millisecond)
	case "HSET":
		h.handleHSet(c, w, args)
	case "HGET":
		h.handleHGet(c, w, args)
	case "HDEL":
		h.handleHDel(c, w, args)
	case "PUBLISH":
		h.handlePublish(w, args)
	case "SUBSCRIBE":
		h.handleSubscribe(c, w, args)
	case "UNSUBSCRIBE":
		h.handleUnsubscribe(c, w, args)
	case "DBSIZE":
		_ = resp.WriteInteger(w, int64(h.srv.ks.Size(c.db)))
	case "FLUSHDB":
		h.srv.ks.Flush(c.db)
		_ = resp.WriteSimpleString(w, "OK")
	case "SAVE":
		if _, err := h.srv.Save(); err != nil {
			_ = resp.WriteError(w, "ERR "+err.Error())
			return false
		}
		_ = resp.WriteSimpleString(w, "OK")
	default:
		_ = resp.WriteError(w, "ERR unknown command '"+strings.ToLower(cmd)+"'")
	}
	return false
}

func (h *commandHandler) handlePing(w *bufio.Writer, args [][]byte) {
	if len(args) > 1 {
		_ = resp.WriteBulk(w, args[1])
		return
	}
	_ = resp.WriteSimpleString(w, "PONG")
}

func (h *commandHandler) handleEcho(w *bufio.Writer, args [][]byte) {
	if len(args) != 2 {
		wrongArgs(w, "ECHO")
		return
	}
	_ = resp.WriteBulk(w, args[1])
}

// AUTH <password> | AUTH default <password>
func (h *commandHandler) handleAuth(c *Conn, w *bufio.Writer, args [][]byte) {
	var user, password string
	switch len(args) {
	case 2:
		user, password = "default", string(args[1])
	case 3:
		user, password = string(args[1]), string(args[2])
	default:
		wrongArgs(w, "AUTH")
		return
	}

	if h.srv.cfg.Password == "" {
		_ = resp.WriteError(w, "ERR AUTH <password> called without any password configured for the default user")
		return
	}
	if user != "default" || password != h.srv.cfg.Password {
		h.srv.log.Warn("authentication failed", "remote", c.RemoteAddr().String())
		_ = resp.WriteError(w, "WRONGPASS invalid username-password pair or user is disabled.")
		return
	}
	c.authenticated = true
	_ = resp.WriteSimpleString(w, "OK")
}

func (h *commandHandler) handleSelect(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) != 2 {
		wrongArgs(w, "SELECT")
		return
	}
	n, err := strconv.Atoi(string(args[1]))
	if err != nil {
		notInteger(w)
		return
	}
	if n < 0 || n >= h.srv.cfg.Databases {
		_ = resp.WriteError(w, "ERR DB index is out of range")
		return
	}
	c.db = n
	_ = resp.WriteSimpleString(w, "OK")
}

func (h *commandHandler) handleGet(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) != 2 {
		wrongArgs(w, "GET")
		return
	}
	v, ok, err := h.srv.ks.Get(c.db, string(args[1]))
	switch {
	case err != nil:
		_ = resp.WriteError(w, err.Error())
	case !ok:
		_ = resp.WriteNullBulk(w)
	default:
		_ = resp.WriteBulkString(w, v)
	}
}

// SET key value [EX seconds | PX milliseconds] [NX | XX]
func (h *commandHandler) handleSet(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) < 3 {
		wrongArgs(w, "SET")
		return
	}

	var ttl time.Duration
	mode := SetAlways
	for i := 3; i < len(args); i++ {
		switch opt := strings.ToUpper(string(args[i])); opt {
		case "EX", "PX":
			if i+1 >= len(args) {
				_ = resp.WriteError(w, "ERR syntax error")
				return
			}
			n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil {
				notInteger(w)
				return
			}
			if n <= 0 {
				_ = resp.WriteError(w, "ERR invalid expire time in 'set' command")
				return
			}
			unit := time.Second
			if opt == "PX" {
				unit = time.Millisecond
			}
			ttl = time.Duration(n) * unit
			i++
		case "NX":
			mode = SetIfAbsent
		case "XX":
			mode = SetIfPresent
		default:
			_ = resp.WriteError(w, "ERR syntax error")
			return
		}
	}

	if !h.srv.ks.Set(c.db, string(args[1]), string(args[2]), ttl, mode) {
		_ = resp.WriteNullBulk(w)
		return
	}
	_ = resp.WriteSimpleString(w, "OK")
}

// SETEX key seconds value
func (h *commandHandler) handleSetEx(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) != 4 {
		wrongArgs(w, "SETEX")
		return
	}
	secs, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		notInteger(w)
		return
	}
	if secs <= 0 {
		_ = resp.WriteError(w, "ERR invalid expire time in 'setex' command")
		return
	}
	h.srv.ks.Set(c.db, string(args[1]), string(args[3]), time.Duration(secs)*time.Second, SetAlways)
	_ = resp.WriteSimpleString(w, "OK")
}

func keys(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

func (h *commandHandler) handleDel(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) < 2 {
		wrongArgs(w, "DEL")
		return
	}
	_ = resp.WriteInteger(w, int64(h.srv.ks.Del(c.db, keys(args[1:])...)))
}

func (h *commandHandler) handleExists(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) < 2 {
		wrongArgs(w, "EXISTS")
		return
	}
	_ = resp.WriteInteger(w, int64(h.srv.ks.Exists(c.db, keys(args[1:])...)))
}

// EXPIRE key seconds
func (h *commandHandler) handleExpire(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) != 3 {
		wrongArgs(w, "EXPIRE")
		return
	}
	secs, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		notInteger(w)
		return
	}
	if h.srv.ks.Expire(c.db, string(args[1]), time.Duration(secs)*time.Second) {
		_ = resp.WriteInteger(w, 1)
		return
	}
	_ = resp.WriteInteger(w, 0)
}

func (h *commandHandler) handlePersist(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) != 2 {
		wrongArgs(w, "PERSIST")
		return
	}
	if h.srv.ks.Persist(c.db, string(args[1])) {
		_ = resp.WriteInteger(w, 1)
		return
	}
	_ = resp.WriteInteger(w, 0)
}

// TTL and PTTL: -2 missing, -1 no expiry, otherwise remaining time in unit
// (rounded to nearest).
func (h *commandHandler) handleTTL(c *Conn, w *bufio.Writer, args [][]byte, unit time.Duration) {
	if len(args) != 2 {
		wrongArgs(w, string(args[0]))
		return
	}
	d := h.srv.ks.TTL(c.db, string(args[1]))
	if d < 0 {
		_ = resp.WriteInteger(w, int64(d))
		return
	}
	_ = resp.WriteInteger(w, int64((d+unit/2)/unit))
}

// HSET key field value [field value ...]
func (h *commandHandler) handleHSet(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) < 4 || len(args)%2 != 0 {
		wrongArgs(w, "HSET")
		return
	}
	n, err := h.srv.ks.HSet(c.db, string(args[1]), keys(args[2:])...)
	if err != nil {
		_ = resp.WriteError(w, err.Error())
		return
	}
	_ = resp.WriteInteger(w, int64(n))
}

func (h *commandHandler) handleHGet(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) != 3 {
		wrongArgs(w, "HGET")
		return
	}
	v, ok, err := h.srv.ks.HGet(c.db, string(args[1]), string(args[2]))
	switch {
	case err != nil:
		_ = resp.WriteError(w, err.Error())
	case !ok:
		_ = resp.WriteNullBulk(w)
	default:
		_ = resp.WriteBulkString(w, v)
	}
}

func (h *commandHandler) handleHDel(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) < 3 {
		wrongArgs(w, "HDEL")
		return
	}
	n, err := h.srv.ks.HDel(c.db, string(args[1]), keys(args[2:])...)
	if err != nil {
		_ = resp.WriteError(w, err.Error())
		return
	}
	_ = resp.WriteInteger(w, int64(n))
}

// PUBLISH channel message
func (h *commandHandler) handlePublish(w *bufio.Writer, args [][]byte) {
	if len(args) != 3 {
		wrongArgs(w, "PUBLISH")
		return
	}
	_ = resp.WriteInteger(w, int64(h.srv.hub.Publish(string(args[1]), string(args[2]))))
}

// SUBSCRIBE channel [channel ...]
func (h *commandHandler) handleSubscribe(c *Conn, w *bufio.Writer, args [][]byte) {
	if len(args) < 2 {
		wrongArgs(w, "SUBSCRIBE")
		return
	}
	if c.outbox == nil {
		c.outbox = make(chan Message, 256)
		h.srv.wg.Add(1)
		go h.srv.pushLoop(c)
	}

	for _, a := range args[1:] {
		ch := string(a)
		if _, ok := c.subs[ch]; !ok {
			c.subs[ch] = h.srv.hub.Subscribe(ch, c.outbox)
		}
		_ = resp.WriteArrayHeader(w, 3)
		_ = resp.WriteBulkString(w, "subscribe")
		_ = resp.WriteBulkString(w, ch)
		_ = resp.WriteInteger(w, int64(len(c.subs)))
	}
}

// UNSUBSCRIBE [channel ...]; no arguments drops every subscription.
func (h *commandHandler) handleUnsubscribe(c *Conn, w *bufio.Writer, args [][]byte) {
	channels := keys(args[1:])
	if len(channels) == 0 {
		for ch := range c.subs {
			channels = append(channels, ch)
		}
	}

	if len(channels) == 0 {
		_ = resp.WriteArrayHeader(w, 3)
		_ = resp.WriteBulkString(w, "unsubscribe")
		_ = resp.WriteNullBulk(w)
		_ = resp.WriteInteger(w, 0)
		return
	}

	for _, ch := range channels {
		if cancel, ok := c.subs[ch]; ok {
			cancel()
			delete(c.subs, ch)
		}
		_ = resp.WriteArrayHeader(w, 3)
		_ = resp.WriteBulkString(w, "unsubscribe")
		_ = resp.WriteBulkString(w, ch)
		_ = resp.WriteInteger(w, int64(len(c.subs)))
	}
}
