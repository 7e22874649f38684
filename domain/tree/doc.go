/*
Package tree is a concurrent ordered tree whose removed nodes are reclaimed
through an smr.Scheme.

The tree is external: user nodes are leaves, and every internal node is an
engine-owned router whose key is the smallest key of its right subtree.
Two sentinel leaves of infinite rank and a sentinel root keep every user leaf
at depth two or more, so a removal always has a grandparent to lock.

Readers never lock. They protect each node as they step onto it and check
that the parent is still linked and still points at it; a failed check
restarts from the root. Insert locks the parent of the target leaf. Removal
locks the grandparent, then the parent, marks both the leaf and the parent
removed and swings the grandparent to the sibling.

Pointers returned by Get, Min, Max and Next are valid until the guard they
were read under exits. Extract returns an smr.Exempt that keeps the leaf
alive outside any guard until Release.
*/
package tree
