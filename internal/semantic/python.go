package semantic

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/wgomg/affinity/internal/config"
	"github.com/wgomg/affinity/internal/utils"
	"github.com/wgomg/affinity/internal/utils/httputils"
)

type Task struct {
	ctx       context.Context
	RequestID string
	Texts     []string
	Result    chan<- TaskResult
}

type TaskResult struct {
	Vectors [][]float32
	Err     error
}

// PythonWorkerPool hosts the sentence-transformers model in Python worker
// processes. Each worker holds its own model and serves one batch at a time.
type PythonWorkerPool struct {
	logger    *utils.Logger
	script    string
	venv      string
	cfg       *config.SemanticConfig
	taskQueue chan Task
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dimension int

	setup func() error
	spawn func(id int) (*PythonWorker, error)
}

type PythonWorker struct {
	id      int
	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	mu      sync.Mutex
	pool    *PythonWorkerPool
}

type PythonConfigMessage struct {
	ModelName           string `json:"model_name"`
	NormalizeEmbeddings bool   `json:"normalize_embeddings"`
}

type PythonReadyMessage struct {
	Status       string `json:"status"`
	EmbeddingDim int    `json:"embedding_dim"`
	Error        string `json:"error,omitempty"`
}

type PythonRequest struct {
	Texts []string `json:"texts"`
}

type PythonResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func NewPythonEmbedder(logger *utils.Logger, cfg *config.SemanticConfig) *PythonWorkerPool {
	pythonDir := filepath.Join(cfg.Python.ConfigDir, "python")
	script := filepath.Join(pythonDir, "embed_worker.py")
	venv := filepath.Join(cfg.Python.ConfigDir, "venv")

	p := &PythonWorkerPool{
		logger:    logger,
		script:    script,
		venv:      venv,
		cfg:       cfg,
		taskQueue: make(chan Task, 100),
	}
	p.setup = p.setupEnvironment
	p.spawn = p.startWorker

	return p
}

// Initialize prepares the Python environment and starts every worker. It
// returns once all workers have loaded the model.
func (p *PythonWorkerPool) Initialize() error {
	p.logger.Info(nil, "Initializing Python embedder with %d workers, model=%s", p.cfg.WorkerCount, p.cfg.Model)

	if err := p.setup(); err != nil {
		return fmt.Errorf("failed to setup environment: %w", err)
	}

	workers := make([]*PythonWorker, 0, p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker, err := p.spawn(i)
		if err != nil {
			for _, w := range workers {
				w.close()
			}
			return fmt.Errorf("failed to start worker %d: %w", i, err)
		}
		workers = append(workers, worker)
	}

	for _, worker := range workers {
		p.wg.Add(1)
		go p.runWorker(worker.id, worker)
	}

	p.logger.Info(nil, "Python embedder initialized successfully (embedding_dim=%d)", p.dimension)
	return nil
}

func (p *PythonWorkerPool) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	result := make(chan TaskResult, 1)
	task := Task{
		ctx:       ctx,
		RequestID: httputils.RequestIDFromContext(ctx),
		Texts:     texts,
		Result:    result,
	}

	if err := p.enqueue(ctx, task); err != nil {
		return nil, err
	}

	select {
	case res := <-result:
		return res.Vectors, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *PythonWorkerPool) enqueue(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PythonWorkerPool) ModelName() string {
	return p.cfg.Model
}

func (p *PythonWorkerPool) Dimension() int {
	return p.dimension
}

func (p *PythonWorkerPool) HealthCheck(ctx context.Context) error {
	if err := healthCheck(ctx, p); err != nil {
		return fmt.Errorf("health check: worker error: %w", err)
	}
	return nil
}

func (p *PythonWorkerPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// runWorker serves tasks until the queue closes, restarting the process when
// it stops answering.
func (p *PythonWorkerPool) runWorker(id int, worker *PythonWorker) {
	defer p.wg.Done()
	defer func() {
		if worker != nil {
			worker.close()
		}
	}()

	for task := range p.taskQueue {
		if err := task.ctx.Err(); err != nil {
			task.Result <- TaskResult{Err: err}
			continue
		}

		if worker == nil {
			restarted, err := p.spawn(id)
			if err != nil {
				p.logger.Error(&task.RequestID, "Failed to restart worker %d: %v", id, err)
				task.Result <- TaskResult{Err: err}
				continue
			}
			worker = restarted
		}

		started := time.Now()
		vectors, err := worker.embed(task.Texts)
		if err != nil {
			if errors.Is(err, errWorkerBroken) {
				p.logger.Error(&task.RequestID, "Worker %d failed, restarting on next task: %v", id, err)
				worker.close()
				worker = nil
			}
			task.Result <- TaskResult{Err: err}
			continue
		}

		p.logger.Debug(&task.RequestID, "Worker %d embedded %d texts in %s", id, len(task.Texts), time.Since(started))
		task.Result <- TaskResult{Vectors: vectors}
	}
}

func (p *PythonWorkerPool) startWorker(id int) (*PythonWorker, error) {
	python := filepath.Join(p.venv, "bin", "python")

	cmd := exec.Command(python, p.script)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start process: %w", err)
	}

	worker := newPythonWorker(id, p, stdin, stdout)
	worker.process = cmd

	if err := worker.handshake(); err != nil {
		worker.close()
		return nil, err
	}

	return worker, nil
}

func newPythonWorker(id int, pool *PythonWorkerPool, stdin io.WriteCloser, stdout io.Reader) *PythonWorker {
	return &PythonWorker{
		id:     id,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		pool:   pool,
	}
}

// handshake sends the model config and waits until the model is loaded.
func (w *PythonWorker) handshake() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	msg := PythonConfigMessage{
		ModelName:           w.pool.cfg.Model,
		NormalizeEmbeddings: false,
	}
	if err := w.writeLine(msg); err != nil {
		return fmt.Errorf("send config: %w", err)
	}

	var ready PythonReadyMessage
	if err := w.readLine(&ready); err != nil {
		return fmt.Errorf("failed to read ready message: %w", err)
	}
	if ready.Status != "ready" {
		return fmt.Errorf("unexpected startup status %q: %s", ready.Status, ready.Error)
	}

	if w.pool.dimension == 0 {
		w.pool.dimension = ready.EmbeddingDim
	}
	w.pool.logger.Debug(nil, "Python worker %d ready (embedding_dim=%d)", w.id, ready.EmbeddingDim)
	return nil
}

func (w *PythonWorker) embed(texts []string) ([][]float32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeLine(PythonRequest{Texts: texts}); err != nil {
		return nil, err
	}

	var resp PythonResponse
	if err := w.readLine(&resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("python error: %s", resp.Error)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrVectorCount, len(resp.Embeddings), len(texts))
	}

	return resp.Embeddings, nil
}

func (w *PythonWorker) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	data = append(data, '\n')
	if _, err := w.stdin.Write(data); err != nil {
		return fmt.Errorf("%w: write request: %w", errWorkerBroken, err)
	}
	return nil
}

func (w *PythonWorker) readLine(v any) error {
	line, err := w.stdout.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: stdout closed", errWorkerBroken)
		}
		return fmt.Errorf("%w: read stdout: %w", errWorkerBroken, err)
	}

	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("%w: parse response: %w", errWorkerBroken, err)
	}
	return nil
}

func (w *PythonWorker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stdin != nil {
		w.stdin.Close()
	}
	if w.process == nil || w.process.Process == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		w.process.Wait()
		close(done)
	}()

	timeout := time.Duration(w.pool.cfg.Python.ProcessShutdownTimeout) * time.Second
	select {
	case <-done:
	case <-time.After(timeout):
		w.pool.logger.Debug(nil, "Python worker %d did not exit within %s, killing", w.id, timeout)
		w.process.Process.Kill()
		<-done
	}
}

func (p *PythonWorkerPool) setupEnvironment() error {
	if err := os.MkdirAll(p.cfg.Python.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := p.extractScriptIfNeeded(); err != nil {
		return fmt.Errorf("failed to extract script: %w", err)
	}

	if err := p.checkPython(); err != nil {
		return fmt.Errorf("python check failed: %w", err)
	}

	if err := p.createVenv(); err != nil {
		return fmt.Errorf("failed to create venv: %w", err)
	}

	if err := p.installRequirements(); err != nil {
		return fmt.Errorf("failed to install requirements: %w", err)
	}

	return nil
}

func (p *PythonWorkerPool) checkPython() error {
	cmd := exec.Command("python3", "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("python3 not found: %w", err)
	}

	p.logger.Debug(nil, "Python3 found")
	return nil
}

func (p *PythonWorkerPool) createVenv() error {
	venvPython := filepath.Join(p.venv, "bin", "python")

	if _, err := os.Stat(venvPython); err == nil {
		p.logger.Debug(nil, "Virtual environment already exists at %s", p.venv)
		return nil
	}

	p.logger.Info(nil, "Creating virtual environment at %s", p.venv)

	cmd := exec.Command("python3", "-m", "venv", p.venv)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to create venv: %s: %w", output, err)
	}

	p.logger.Info(nil, "Virtual environment created successfully")
	return nil
}

func (p *PythonWorkerPool) installRequirements() error {
	venvPip := filepath.Join(p.venv, "bin", "pip")
	requirementsPath := filepath.Join(filepath.Dir(p.script), "requirements.txt")

	p.logger.Info(nil, "Installing Python requirements from %s", requirementsPath)

	cmd := exec.Command(venvPip, "install", "--quiet", "-r", requirementsPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to install requirements: %s: %w", output, err)
	}

	p.logger.Info(nil, "Python requirements installed successfully")
	return nil
}

// extractScriptIfNeeded writes the embedded worker script and requirements,
// replacing files that differ from the embedded copies.
func (p *PythonWorkerPool) extractScriptIfNeeded() error {
	pythonDir := filepath.Dir(p.script)

	if err := os.MkdirAll(pythonDir, 0755); err != nil {
		return fmt.Errorf("failed to create python directory: %w", err)
	}

	requirementsContent := embeddedRequirements
	if requirementsContent == "" {
		requirementsContent = defaultRequirements
	}

	files := []struct {
		path    string
		content string
		mode    os.FileMode
	}{
		{p.script, embeddedPythonScript, 0755},
		{filepath.Join(pythonDir, "requirements.txt"), requirementsContent, 0644},
	}

	for _, f := range files {
		if existing, err := os.ReadFile(f.path); err == nil && string(existing) == f.content {
			p.logger.Debug(nil, "%s is up to date", f.path)
			continue
		}

		p.logger.Info(nil, "Extracting embedded file to %s", f.path)
		if err := os.WriteFile(f.path, []byte(f.content), f.mode); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
	}

	return nil
}
