// Package shutdown runs registered cleanup hooks when the process is asked
// to stop.
//
// Hooks run in reverse registration order under a shared deadline, so the
// component started last is stopped first:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("pool", pool.Close)
//	h.OnShutdown("node", node.Stop)
//	err := h.Wait(ctx) // returns after SIGINT/SIGTERM or ctx cancellation
package shutdown
