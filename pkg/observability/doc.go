/*
Package observability provides lifecycle hooks for monitoring dialogue sessions.

Each helper returns a domain.LifecycleHooks value; combine them with
domain.ChainHooks and pass the result to the engine:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	rec := observability.NewTranscriptRecorder(sink, logger)
	defer rec.Close()

	hooks := domain.ChainHooks(
		observability.LoggingHooks(logger),
		metrics.Hooks(),
		rec.Hooks(),
	)
*/
package observability
