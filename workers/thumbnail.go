package workers

import (
	"log"
	"sync"

	"github.com/cardbinder/cardbinderbackend/imagecache"
)

// RebuildJob asks for one collector's thumbnail namespace to be regenerated,
// typically after a backup restore cleared it.
type RebuildJob struct {
	OwnerID string
}

// ThumbnailRebuilder regenerates missing thumbnails in the background so a
// bulk restore does not block on re-encoding every image.
type ThumbnailRebuilder struct {
	JobQueue chan RebuildJob
	Manager  *imagecache.Manager
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex
}

func NewThumbnailRebuilder(manager *imagecache.Manager, queueSize, numWorkers int) *ThumbnailRebuilder {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	tr := &ThumbnailRebuilder{
		JobQueue: make(chan RebuildJob, queueSize),
		Manager:  manager,
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
	}

	tr.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go tr.worker(i)
	}
	log.Printf("started %d thumbnail rebuild worker(s) with queue size %d", numWorkers, queueSize)

	return tr
}

func (tr *ThumbnailRebuilder) worker(id int) {
	defer tr.Wg.Done()
	for {
		select {
		case job, ok := <-tr.JobQueue:
			if !ok {
				log.Printf("rebuild worker %d stopping: job queue closed", id)
				return
			}
			tr.processJob(job)
			tr.Mutex.Lock()
			delete(tr.Pending, job.OwnerID)
			tr.Mutex.Unlock()

		case <-tr.StopChan:
			log.Printf("rebuild worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (tr *ThumbnailRebuilder) processJob(job RebuildJob) {
	cache, err := tr.Manager.For(job.OwnerID)
	if err != nil {
		log.Printf("ERROR opening cache for %s during thumbnail rebuild: %v", job.OwnerID, err)
		return
	}

	rebuilt := 0
	for _, entry := range cache.Entries() {
		if entry.HasThumbnail {
			continue
		}
		payload, ok := cache.Get(entry.Key)
		if !ok {
			continue // evicted since listing, nothing to do
		}
		if _, ok := cache.PutThumbnail(entry.Key, payload); ok {
			rebuilt++
		}
	}
	log.Printf("rebuilt %d thumbnail(s) for collector %s", rebuilt, job.OwnerID)
}

// QueueJob enqueues a rebuild unless one is already pending for the owner.
func (tr *ThumbnailRebuilder) QueueJob(job RebuildJob) bool {
	tr.Mutex.Lock()
	if tr.Pending[job.OwnerID] {
		tr.Mutex.Unlock()
		return false
	}
	tr.Pending[job.OwnerID] = true
	tr.Mutex.Unlock()

	select {
	case tr.JobQueue <- job:
		log.Printf("queued thumbnail rebuild for collector %s", job.OwnerID)
		return true
	default:
		log.Printf("WARNING: thumbnail rebuild queue full, dropping job for %s", job.OwnerID)
		tr.Mutex.Lock()
		delete(tr.Pending, job.OwnerID)
		tr.Mutex.Unlock()
		return false
	}
}

func (tr *ThumbnailRebuilder) Stop() {
	log.Println("stopping thumbnail rebuilder...")
	close(tr.StopChan)
	tr.Wg.Wait()
	log.Println("all rebuild workers stopped")
}
