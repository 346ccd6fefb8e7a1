// Package handlers implements the §6 HTTP surface on top of the C1-C9
// components: collections, files, websites, QA pairs, embedding configs,
// retrieval search, platform callbacks, and the assignment/routing
// actions the messaging fabric needs. Grounded on agentoven
// internal/api/handlers's handler-struct-per-component shape.
package handlers

import (
	"github.com/deskwise/deskwise/internal/assignment"
	"github.com/deskwise/deskwise/internal/channelfabric"
	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/crawl"
	"github.com/deskwise/deskwise/internal/embedding"
	"github.com/deskwise/deskwise/internal/inbox"
	"github.com/deskwise/deskwise/internal/ingestion"
	"github.com/deskwise/deskwise/internal/retrieval"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/vectorstore"
	"github.com/deskwise/deskwise/internal/worker"
)

// Handlers bundles every dependency the §6 HTTP surface calls into. One
// instance is built in pkg/server and mounted by internal/api.Router.
type Handlers struct {
	Store      store.Store
	Cfg        *config.Config
	Resolver   *embedding.Resolver
	Pipeline   *ingestion.Pipeline
	Crawl      *crawl.Engine
	Retrieval  *retrieval.Service
	Vectors    vectorstore.Driver
	Dispatcher *inbox.Dispatcher
	Assignment *assignment.Engine
	Channel    *channelfabric.Adapter
	Jobs       *worker.Pool
}

func New(
	s store.Store,
	cfg *config.Config,
	resolver *embedding.Resolver,
	pipeline *ingestion.Pipeline,
	crawlEngine *crawl.Engine,
	retrievalSvc *retrieval.Service,
	vectors vectorstore.Driver,
	dispatcher *inbox.Dispatcher,
	assignmentEngine *assignment.Engine,
	channelAdapter *channelfabric.Adapter,
	jobs *worker.Pool,
) *Handlers {
	return &Handlers{
		Store:      s,
		Cfg:        cfg,
		Resolver:   resolver,
		Pipeline:   pipeline,
		Crawl:      crawlEngine,
		Retrieval:  retrievalSvc,
		Vectors:    vectors,
		Dispatcher: dispatcher,
		Assignment: assignmentEngine,
		Channel:    channelAdapter,
		Jobs:       jobs,
	}
}
