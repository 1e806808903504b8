/*
Package lottrack notifies the lot-tracking service about carrier
associations and port movements.

Each call opens a connection, sends one kvmsg frame and waits for a reply
whose RTN_CD must be 0:

	LLCR  link carrier and logical ID     CST_ID LOGICAL_ID TYPE(L|R)
	LLDR  unlink carrier and logical ID   CST_ID LOGICAL_ID TYPE(L|R)
	LIPR  carrier entered at a port       CST_ID LOGICAL_ID LOCATION PORT_ID
	LOPR  carrier left at a port          CST_ID LOGICAL_ID LOCATION PORT_ID

Links for the EMPTY logical ID and movements on pod stockers are not sent.
A non-zero RTN_CD is returned as *RejectError.
*/
package lottrack
