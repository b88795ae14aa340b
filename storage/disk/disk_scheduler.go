package disk

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type DISK_OP = int

const (
	READ_OP DISK_OP = iota
	WRITE_OP
	DELETE_OP
)

func NewScheduler(diskManager *diskManager) *DiskScheduler {
	ds := &DiskScheduler{
		reqCh:       make(chan DiskReq, 100),
		pageQueue:   make(map[PageID]chan DiskReq),
		diskManager: diskManager,
	}

	go ds.handleDiskReq()
	return ds
}

func NewReadRequest(pageId PageID) DiskReq {
	return DiskReq{PageId: pageId, Op: READ_OP, RespCh: make(chan DiskResp, 1)}
}

func NewWriteRequest(pageId PageID, data []byte) DiskReq {
	return DiskReq{PageId: pageId, Op: WRITE_OP, Data: data, RespCh: make(chan DiskResp, 1)}
}

func NewDeleteRequest(pageId PageID) DiskReq {
	return DiskReq{PageId: pageId, Op: DELETE_OP, RespCh: make(chan DiskResp, 1)}
}

func (ds *DiskScheduler) Schedule(req DiskReq) <-chan DiskResp {
	ds.reqCh <- req
	return req.RespCh
}

// handleDiskReq fans requests out to per-page queues so requests against
// one page stay ordered while distinct pages proceed in parallel.
func (ds *DiskScheduler) handleDiskReq() {
	for req := range ds.reqCh {
		ds.pageQueueMu.Lock()
		queue, ok := ds.pageQueue[req.PageId]
		if !ok {
			queue = make(chan DiskReq, 10)
			ds.pageQueue[req.PageId] = queue
		}
		queue <- req
		ds.pageQueueMu.Unlock()

		// !ok means we created a new page queue, therefore we should start a
		// new worker to handle the queue's page requests
		if !ok {
			go ds.pageWorker(req.PageId, queue)
		}
	}
}

func (ds *DiskScheduler) pageWorker(pageId PageID, reqQueue chan DiskReq) {
	for {
		select {
		case req := <-reqQueue:
			ds.serve(req)

		default:
			// done handling requests for this page; retire the queue unless a
			// request slipped in while we were not looking
			ds.pageQueueMu.Lock()
			if len(reqQueue) > 0 {
				ds.pageQueueMu.Unlock()
				continue
			}
			delete(ds.pageQueue, pageId)
			ds.pageQueueMu.Unlock()
			return
		}
	}
}

func (ds *DiskScheduler) serve(req DiskReq) {
	switch req.Op {
	case WRITE_OP:
		if err := ds.diskManager.writePage(req.PageId, req.Data); err != nil {
			logrus.WithError(err).WithField("pageId", req.PageId).Error("disk write failed")
			req.RespCh <- DiskResp{Success: false}
			return
		}
		req.RespCh <- DiskResp{Success: true}

	case READ_OP:
		data, err := ds.diskManager.readPage(req.PageId)
		if err != nil {
			logrus.WithError(err).WithField("pageId", req.PageId).Error("disk read failed")
			req.RespCh <- DiskResp{Success: false}
			return
		}
		req.RespCh <- DiskResp{Success: true, Data: data}

	case DELETE_OP:
		ds.diskManager.deletePage(req.PageId)
		req.RespCh <- DiskResp{Success: true}
	}
}

type DiskScheduler struct {
	reqCh       chan DiskReq
	diskManager *diskManager

	pageQueue   map[PageID]chan DiskReq
	pageQueueMu sync.Mutex
}

type DiskReq struct {
	PageId PageID
	Data   []byte
	Op     DISK_OP
	RespCh chan DiskResp
}

type DiskResp struct {
	Success bool
	Data    []byte
}
