package validator

import (
	"time"

	"github.com/mosaicnetworks/ledgerpool/src/net"
)

// ServeInmem gives node an in-memory transport at its address, reachable
// from client.
func (n *Node) ServeInmem(client *net.InmemTransport) {
	_, trans := net.NewInmemTransport(n.Addr)
	client.Connect(n.Addr, trans)
	n.Serve(trans)
}

// ConnectInmem serves every node in memory and connects client to them.
func (n *Network) ConnectInmem(client *net.InmemTransport) {
	for _, node := range n.Nodes() {
		node.ServeInmem(client)
	}
}

// ServeTCP serves every node over TCP, each node binding to its address.
func (n *Network) ServeTCP(maxPool int, timeout time.Duration) error {
	for _, node := range n.Nodes() {
		trans, err := net.NewTCPTransport(node.Addr, "", maxPool, timeout, node.logger)
		if err != nil {
			n.Close()
			return err
		}
		go trans.Listen()
		node.Serve(trans)
	}
	return nil
}

// Close stops every node.
func (n *Network) Close() {
	for _, node := range n.Nodes() {
		node.Stop()
	}
}
