// Package monitoring turns a running cell into a web server that can pause
// and resume the engine, and show the components, the devices, the process
// resources and the metrics.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/nrmac/monitoring/web"
	"github.com/sarchlab/nrmac/registry"
	"github.com/sarchlab/nrmac/sim"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine      sim.Engine
	components  []sim.Component
	registry    *registry.Registry
	metrics     http.Handler
	portNumber  int
	openBrowser bool
	profileTime time.Duration

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{profileTime: time.Second}
}

// WithPortNumber sets the port number of the monitor. Zero, or a port below
// 1000, picks a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterComponent register a component to be monitored.
func (m *Monitor) RegisterComponent(c sim.Component) {
	m.components = append(m.components, c)
}

// RegisterRegistry sets where the devices are looked up.
func (m *Monitor) RegisterRegistry(r *registry.Registry) {
	m.registry = r
}

// RegisterMetrics sets the handler that serves /metrics.
func (m *Monitor) RegisterMetrics(h http.Handler) {
	m.metrics = h
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/tick/{name}", m.tick)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/devices", m.listDevices)
	r.HandleFunc("/api/device/{rnti:[0-9]+}", m.deviceDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	if m.metrics != nil {
		r.Handle("/metrics", m.metrics)
	}

	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	dieOnErr(err)

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Panic(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("monitoring: cannot open browser: %v", err)
		}
	}

	return url
}

// StopServer closes the server started by StartServer.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", float64(now))
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	go func() {
		err := m.engine.Run()
		if err != nil {
			log.Panic(err)
		}
	}()

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

type tickingComponent interface {
	TickLater()
}

func (m *Monitor) tick(w http.ResponseWriter, r *http.Request) {
	comp := m.findComponentOr404(w, mux.Vars(r)["name"])
	if comp == nil {
		return
	}

	tickingComp, ok := comp.(tickingComponent)
	if !ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tickingComp.TickLater()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["name"])
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	dieOnErr(serializer.Serialize(w))
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dieOnErr(serializer.Serialize(w))
}

type deviceSummary struct {
	RNTI       uint16 `json:"rnti"`
	DlBuffered uint32 `json:"dl_buffered"`
	UlBuffered uint32 `json:"ul_buffered"`
	DlMcs      uint8  `json:"dl_mcs"`
	UlMcs      uint8  `json:"ul_mcs"`
}

func (m *Monitor) listDevices(w http.ResponseWriter, _ *http.Request) {
	summaries := []deviceSummary{}

	if m.registry != nil {
		for _, d := range m.registry.Devices() {
			summaries = append(summaries, deviceSummary{
				RNTI:       d.RNTI,
				DlBuffered: d.DlBuffered(),
				UlBuffered: d.UlBuffered(),
				DlMcs:      d.Dl.Mcs[0],
				UlMcs:      d.Ul.Mcs[0],
			})
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RNTI < summaries[j].RNTI
	})

	writeJSON(w, summaries)
}

// deviceView is what the device endpoint serializes. It holds no arrays,
// which the serializer cannot walk.
type deviceView struct {
	RNTI             uint16
	BeamID           uint32
	TransmissionMode uint8
	Dl               registry.LinkState
	Ul               registry.LinkState
	DlBuffered       uint32
	UlBuffered       uint32
	UlLcgBytes       []uint32
	DlAvgThroughput  float64
	UlAvgThroughput  float64
	DlHarqDropped    uint64
	UlHarqDropped    uint64
	Channels         []*registry.LogicalChannel
}

func newDeviceView(d *registry.Device) deviceView {
	v := deviceView{
		RNTI:             d.RNTI,
		BeamID:           uint32(d.BeamID),
		TransmissionMode: d.TransmissionMode,
		Dl:               d.Dl,
		Ul:               d.Ul,
		DlBuffered:       d.DlBuffered(),
		UlBuffered:       d.UlBuffered(),
		UlLcgBytes:       append([]uint32(nil), d.UlLcgBytes[:]...),
		DlAvgThroughput:  d.DlAvgThroughput,
		UlAvgThroughput:  d.UlAvgThroughput,
		Channels:         d.LogicalChannels(),
	}

	if d.DlHarq != nil {
		v.DlHarqDropped = d.DlHarq.NumDropped()
	}

	if d.UlHarq != nil {
		v.UlHarqDropped = d.UlHarq.NumDropped()
	}

	return v
}

func (m *Monitor) deviceDetails(w http.ResponseWriter, r *http.Request) {
	rnti, err := strconv.ParseUint(mux.Vars(r)["rnti"], 10, 16)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if m.registry == nil {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	d, ok := m.registry.Device(uint16(rnti))
	if !ok {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(newDeviceView(d))
	serializer.SetMaxDepth(2)

	dieOnErr(serializer.Serialize(w))
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressBarSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

type profileEntry struct {
	Function string  `json:"function"`
	Flat     float64 `json:"flat"`
}

// collectProfile samples the CPU for a while and reports the functions that
// used it the most.
func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileTime)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, topFunctions(prof, 20))
}

func topFunctions(prof *profile.Profile, n int) []profileEntry {
	flat := make(map[string]float64)
	valueIndex := len(prof.SampleType) - 1

	for _, s := range prof.Sample {
		if len(s.Location) == 0 || len(s.Location[0].Line) == 0 {
			continue
		}

		fn := s.Location[0].Line[0].Function
		if fn == nil || valueIndex < 0 {
			continue
		}

		flat[fn.Name] += float64(s.Value[valueIndex])
	}

	entries := make([]profileEntry, 0, len(flat))
	for name, v := range flat {
		entries = append(entries, profileEntry{Function: name, Flat: v})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Flat != entries[j].Flat {
			return entries[i].Flat > entries[j].Flat
		}

		return entries[i].Function < entries[j].Function
	})

	if len(entries) > n {
		entries = entries[:n]
	}

	return entries
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
