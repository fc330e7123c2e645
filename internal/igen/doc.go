// Package igen defines the contract of the external interface generator
// and a bridge that drives the real implementation.
//
// igen is a Python package installed under $IGEN_ROOT/src. Go cannot link
// it, so the Bridge hosts it in a child interpreter. The embedded driver
// appends that directory to sys.path, imports igen.interface, and serves
// each contract call over a line-delimited JSON protocol:
//
//	fd 3 (child reads):  {"id":1,"op":"configure","args":["/opt/igen","quanta",...]}
//	fd 4 (child writes): {"id":1,"ok":true}
//
// The protocol runs on dedicated pipes, so whatever igen prints on its own
// stdout and stderr reaches the user unchanged.
package igen
