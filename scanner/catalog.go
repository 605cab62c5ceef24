package scanner

import "sort"

// Unknown is the label for ports that are not in the catalog.
const Unknown = "Unknown"

// services maps well-known TCP ports to a display label. Labels are advisory and never
// influence the reachability state.
var services = map[int]string{
	7:     "Echo",
	20:    "FTP-Data",
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	37:    "Time",
	43:    "WHOIS",
	53:    "DNS",
	69:    "TFTP",
	79:    "Finger",
	80:    "HTTP",
	88:    "Kerberos",
	102:   "ISO-TSAP",
	110:   "POP3",
	111:   "RPCBind",
	113:   "Ident",
	119:   "NNTP",
	123:   "NTP",
	135:   "MSRPC",
	137:   "NetBIOS-NS",
	139:   "NetBIOS-SSN",
	143:   "IMAP",
	161:   "SNMP",
	179:   "BGP",
	389:   "LDAP",
	443:   "HTTPS",
	445:   "SMB",
	465:   "SMTPS",
	502:   "Modbus",
	514:   "Syslog",
	515:   "LPD",
	548:   "AFP",
	554:   "RTSP",
	587:   "SMTP-Submission",
	631:   "IPP",
	636:   "LDAPS",
	873:   "Rsync",
	993:   "IMAPS",
	995:   "POP3S",
	1080:  "SOCKS",
	1194:  "OpenVPN",
	1433:  "MSSQL",
	1521:  "Oracle",
	1723:  "PPTP",
	1883:  "MQTT",
	2049:  "NFS",
	2181:  "ZooKeeper",
	2375:  "Docker",
	2376:  "Docker-TLS",
	3000:  "HTTP-Dev",
	3128:  "Squid",
	3306:  "MySQL",
	3389:  "RDP",
	4369:  "EPMD",
	5000:  "UPnP",
	5060:  "SIP",
	5432:  "PostgreSQL",
	5672:  "AMQP",
	5900:  "VNC",
	5984:  "CouchDB",
	6379:  "Redis",
	6443:  "Kubernetes-API",
	6667:  "IRC",
	8000:  "HTTP-Alt",
	8008:  "HTTP-Alt",
	8080:  "HTTP-Proxy",
	8443:  "HTTPS-Alt",
	8883:  "MQTT-TLS",
	8888:  "HTTP-Alt",
	9000:  "HTTP-Alt",
	9042:  "Cassandra",
	9090:  "Prometheus",
	9092:  "Kafka",
	9200:  "Elasticsearch",
	9300:  "Elasticsearch-Transport",
	9418:  "Git",
	11211: "Memcached",
	15672: "RabbitMQ-Mgmt",
	27017: "MongoDB",
	50000: "SAP",
}

// Lookup returns the catalog label for port and whether the port is known.
func Lookup(port int) (string, bool) {
	name, ok := services[port]
	return name, ok
}

// Label returns the catalog label for port, or Unknown.
func Label(port int) string {
	if name, ok := services[port]; ok {
		return name
	}
	return Unknown
}

// CommonPorts returns every catalog port in ascending order.
func CommonPorts() []int {
	ports := make([]int, 0, len(services))
	for port := range services {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}
