package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

// WSServer accepts WebSocket upgrades and dispatches JSON commands to the
// transports, discovery routines, and supervisor (spec.md §4.G). Routing and
// the recovery-middleware idiom are the teacher's (web.go NewWebServer); the
// per-connection protocol is request/response by caller-supplied id rather
// than the teacher's broadcast hub, per spec.md §3 "WebSocket session".
type WSServer struct {
	router         *gin.Engine
	supervisor     *Supervisor
	configStore    *ConfigStore
	history        *JobHistory
	allowedOrigins []string
	port           string
}

func NewWSServer(supervisor *Supervisor, configStore *ConfigStore, history *JobHistory, allowedOrigins []string, port string, verbose, quiet bool) *WSServer {
	if verbose {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if !quiet {
		router.Use(gin.Logger())
	}
	router.Use(jsonRecoveryMiddleware())

	s := &WSServer{
		router:         router,
		supervisor:     supervisor,
		configStore:    configStore,
		history:        history,
		allowedOrigins: allowedOrigins,
		port:           port,
	}

	router.GET("/ws", s.handleUpgrade)
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return s
}

// jsonRecoveryMiddleware mirrors the teacher's custom recovery middleware
// (web.go): a panic in an HTTP handler is logged and answered with a 500
// instead of taking the process down (spec.md §7 "Internal invariants").
// WS commands run on the per-socket goroutine, outside this middleware;
// handleFrame recovers them per frame.
func jsonRecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered from panic handling %s: %v", c.Request.URL.Path, r)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

func (s *WSServer) Start(host, port string) error {
	addr := host + ":" + port
	return s.router.Run(addr)
}

var wsUpgrader = websocket.Upgrader{}

func (s *WSServer) handleUpgrade(c *gin.Context) {
	wsUpgrader.CheckOrigin = func(r *http.Request) bool {
		return s.checkOrigin(r.Header.Get("Origin"))
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrader already wrote the appropriate 400/403 response.
		return
	}

	go s.serveConn(conn)
}

// checkOrigin implements spec.md §4.G's origin policy: empty allow-list is
// permissive (logged), listed origins are accepted, and localhost/127.0.0.1
// development origins are always accepted regardless of the list.
func (s *WSServer) checkOrigin(origin string) bool {
	if len(s.allowedOrigins) == 0 {
		log.Printf("warning: WS origin allow-list is empty, accepting all origins")
		return true
	}
	if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:") {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// serveConn processes inbound frames sequentially on this connection so
// replies never interleave; a slow printer on this socket never blocks
// other sockets (spec.md §5).
func (s *WSServer) serveConn(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(MaxWSFrameBytes)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		reply, ok := s.handleFrame(raw)
		if !ok {
			continue // non-JSON or missing integer id: silently dropped
		}

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

type wsEnvelope struct {
	ID   json.Number `json:"id"`
	Type string      `json:"type"`
}

// handleFrame parses one inbound frame and dispatches it, returning the
// reply object and whether a reply should be sent at all (spec.md §4.G
// "Message framing"). A panic while dispatching is recovered and answered
// with an error reply carrying the same id.
func (s *WSServer) handleFrame(raw []byte) (reply map[string]interface{}, ok bool) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}

	id, err := strconv.ParseInt(env.ID.String(), 10, 64)
	if err != nil {
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic handling %q command: %v", env.Type, r)
			reply = errReply(fmt.Sprintf("internal error: %v", r))
			reply["id"] = id
			ok = true
		}
	}()

	reply = s.dispatch(env.Type, raw)
	reply["id"] = id
	return reply, true
}

// recordDispatch logs one WS-path print outcome to the local audit log, the
// same way cloudqueue.go's audit does for cloud-path dispatches (SPEC_FULL.md
// §C "every dispatched print"). Failures to record are logged, never fatal.
func (s *WSServer) recordDispatch(transport, target string, dispatchErr error) {
	if s.history == nil {
		return
	}
	errMsg := ""
	if dispatchErr != nil {
		errMsg = dispatchErr.Error()
	}
	if err := s.history.Record(transport, target, dispatchErr == nil, errMsg); err != nil {
		log.Printf("failed to record job history: %v", err)
	}
}

func okReply(extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"ok": true}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func errReply(msg string) map[string]interface{} {
	return map[string]interface{}{"ok": false, "error": msg}
}

func (s *WSServer) dispatch(cmdType string, raw []byte) map[string]interface{} {
	switch cmdType {
	case "ping":
		return okReply(nil)

	case "getInfo":
		return s.cmdGetInfo()

	case "setRestaurantId":
		return s.cmdSetRestaurantID(raw)

	case "printRawTcp":
		return s.cmdPrintRawTCP(raw)

	case "discoverTcp9100":
		return s.cmdDiscoverTCP9100(raw)

	case "discoverUsb":
		return s.cmdDiscoverUSB()

	case "printRawUsb":
		return s.cmdPrintRawUSB(raw)

	case "discoverOsPrinters":
		return s.cmdDiscoverOSPrinters()

	case "printOs":
		return s.cmdPrintOS(raw)

	case "getRecentJobs":
		return s.cmdGetRecentJobs(raw)

	case "getPairingQr":
		return s.cmdGetPairingQr()

	default:
		return errReply("unknown type")
	}
}

func (s *WSServer) cmdGetInfo() map[string]interface{} {
	ip, err := localIPv4()
	extra := map[string]interface{}{"port": s.port}
	if err == nil {
		extra["localIp"] = ip.String()
	} else {
		extra["localIp"] = ""
	}
	if cfg := s.supervisor.Snapshot(); cfg.RestaurantID != "" {
		extra["restaurantId"] = cfg.RestaurantID
	}
	return okReply(extra)
}

type cmdSetRestaurantIDReq struct {
	RestaurantID string `json:"restaurantId"`
	DeviceName   string `json:"deviceName"`
}

func (s *WSServer) cmdSetRestaurantID(raw []byte) map[string]interface{} {
	var req cmdSetRestaurantIDReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return errReply("invalid request")
	}
	if req.RestaurantID == "" {
		return errReply("restaurantId is required")
	}

	values := map[string]string{ConfigKeyRestaurantID: req.RestaurantID}
	if req.DeviceName != "" {
		values[ConfigKeyDeviceName] = req.DeviceName
	}
	if err := s.configStore.Save(values); err != nil {
		return errReply(err.Error())
	}

	s.supervisor.SetRestaurantID(req.RestaurantID, req.DeviceName)
	return okReply(nil)
}

type cmdPrintRawTCPReq struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	DataB64 string `json:"dataB64"`
}

func (s *WSServer) cmdPrintRawTCP(raw []byte) map[string]interface{} {
	var req cmdPrintRawTCPReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return errReply("invalid request")
	}
	if err := validateIPAddress(req.IP); err != nil {
		return errReply(err.Error())
	}
	if req.DataB64 == "" {
		return errReply("dataB64 is required")
	}
	data, err := base64.StdEncoding.DecodeString(req.DataB64)
	if err != nil {
		return errReply("invalid base64 data")
	}

	port := req.Port
	if port == 0 {
		port = DefaultLANPrintPort
	}

	err = printTcp(req.IP, port, data)
	s.recordDispatch(TargetLAN, fmt.Sprintf("%s:%d", req.IP, port), err)
	if err != nil {
		return errReply(err.Error())
	}
	return okReply(nil)
}

type cmdDiscoverTCP9100Req struct {
	Port int `json:"port"`
}

func (s *WSServer) cmdDiscoverTCP9100(raw []byte) map[string]interface{} {
	var req cmdDiscoverTCP9100Req
	_ = json.Unmarshal(raw, &req)
	port := req.Port
	if port == 0 {
		port = DefaultLANPrintPort
	}

	result, err := scanPort(port)
	if err != nil {
		return errReply(err.Error())
	}
	hits := result.Hits
	if hits == nil {
		hits = []string{}
	}
	return okReply(map[string]interface{}{"prefix": result.Prefix, "ips": hits})
}

func (s *WSServer) cmdDiscoverUSB() map[string]interface{} {
	records, err := discoverUsb()
	if err != nil {
		return errReply(err.Error())
	}
	if records == nil {
		records = []USBDeviceRecord{}
	}
	return okReply(map[string]interface{}{"devices": records})
}

type cmdPrintRawUSBReq struct {
	VendorID      int    `json:"vendorId"`
	ProductID     int    `json:"productId"`
	BusNumber     int    `json:"busNumber"`
	DeviceAddress int    `json:"deviceAddress"`
	Interface     *int   `json:"interface"`
	OutEndpoint   int    `json:"outEndpoint"`
	DataB64       string `json:"dataB64"`
}

func (s *WSServer) cmdPrintRawUSB(raw []byte) map[string]interface{} {
	var req cmdPrintRawUSBReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return errReply("invalid request")
	}

	data, err := base64.StdEncoding.DecodeString(req.DataB64)
	if err != nil {
		return errReply("invalid base64 data")
	}

	iface := 0
	if req.Interface != nil {
		iface = *req.Interface
	}

	target := USBPrintTarget{
		VendorID:        req.VendorID,
		ProductID:       req.ProductID,
		BusNumber:       req.BusNumber,
		DeviceAddress:   req.DeviceAddress,
		InterfaceNumber: iface,
		OutEndpoint:     req.OutEndpoint,
	}

	err = printUsb(target, data)
	s.recordDispatch(TargetUSB, fmt.Sprintf("usb:%04x:%04x", req.VendorID, req.ProductID), err)
	if err != nil {
		return errReply(err.Error())
	}
	return okReply(nil)
}

func (s *WSServer) cmdDiscoverOSPrinters() map[string]interface{} {
	records := osSpooler.discoverOsPrinters()
	if records == nil {
		records = []OSPrinterRecord{}
	}
	return okReply(map[string]interface{}{"printers": records})
}

type cmdPrintOSReq struct {
	PrinterName string `json:"printerName"`
	DataB64     string `json:"dataB64"`
}

func (s *WSServer) cmdPrintOS(raw []byte) map[string]interface{} {
	var req cmdPrintOSReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return errReply("invalid request")
	}
	if req.PrinterName == "" {
		return errReply("printerName is required")
	}
	data, err := base64.StdEncoding.DecodeString(req.DataB64)
	if err != nil {
		return errReply("invalid base64 data")
	}

	err = osSpooler.printOs(req.PrinterName, data)
	s.recordDispatch(TargetOSPrinter, req.PrinterName, err)
	if err != nil {
		return errReply(err.Error())
	}
	return okReply(nil)
}

type cmdGetRecentJobsReq struct {
	Limit int `json:"limit"`
}

func (s *WSServer) cmdGetRecentJobs(raw []byte) map[string]interface{} {
	var req cmdGetRecentJobsReq
	_ = json.Unmarshal(raw, &req)

	if s.history == nil {
		return okReply(map[string]interface{}{"jobs": []RecentJob{}})
	}

	jobs, err := s.history.Recent(req.Limit)
	if err != nil {
		return errReply(err.Error())
	}
	if jobs == nil {
		jobs = []RecentJob{}
	}
	return okReply(map[string]interface{}{"jobs": jobs})
}

// cmdGetPairingQr encodes ws://<lanIP>:<port>/ws as a QR code, the same
// qrcode.Encode(url, qrcode.Medium, 256) call the teacher's NFC URL handler
// uses (web.go), repurposed to let a phone confirm which bridge a LAN scan
// found (SPEC_FULL.md §C).
func (s *WSServer) cmdGetPairingQr() map[string]interface{} {
	ip, err := localIPv4()
	if err != nil {
		return errReply(err.Error())
	}

	url := fmt.Sprintf("ws://%s:%s/ws", ip.String(), s.port)
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return errReply(fmt.Sprintf("failed to generate QR code: %v", err))
	}

	return okReply(map[string]interface{}{
		"pngB64": base64.StdEncoding.EncodeToString(png),
	})
}
